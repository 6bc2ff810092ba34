package metadata

import (
	"encoding/json"
	"testing"
)

func TestValueJSONRoundTrip(t *testing.T) {
	cases := []Value{
		Null(),
		String("hello"),
		Integer(-42),
		Float(3.25),
		Boolean(true),
		Array(Integer(1), String("x"), Boolean(false)),
	}
	for _, v := range cases {
		data, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("Marshal(%v) failed: %v", v, err)
		}
		var got Value
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("Unmarshal(%s) failed: %v", data, err)
		}
		if !v.Equal(got) {
			t.Fatalf("round trip mismatch: %v != %v (wire: %s)", v, got, data)
		}
	}
}

func TestValueJSONDistinguishesIntegerFromFloat(t *testing.T) {
	data, err := json.Marshal(Integer(3))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var got Value
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if got.Kind() != KindInteger {
		t.Fatalf("expected KindInteger after round trip, got %v", got.Kind())
	}
}

func TestMapJSONRoundTrip(t *testing.T) {
	m := Map{"score": Float(0.5), "active": Boolean(true), "tags": Array(String("a"), String("b"))}
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var got Map
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if len(got) != len(m) {
		t.Fatalf("length mismatch: %d != %d", len(got), len(m))
	}
	for k, v := range m {
		if !v.Equal(got[k]) {
			t.Fatalf("key %q mismatch: %v != %v", k, v, got[k])
		}
	}
}
