package metadata

import "testing"

func TestValueEqualNumericCoercion(t *testing.T) {
	cases := []struct {
		name string
		a, b Value
		want bool
	}{
		{"integer-integer equal", Integer(3), Integer(3), true},
		{"integer-float equal", Integer(3), Float(3.0), true},
		{"float-integer equal", Float(3.0), Integer(3), true},
		{"integer-float unequal", Integer(3), Float(3.5), false},
		{"string-string equal", String("a"), String("a"), true},
		{"string-integer never equal", String("3"), Integer(3), false},
		{"boolean-boolean equal", Boolean(true), Boolean(true), true},
		{"boolean-integer never equal", Boolean(true), Integer(1), false},
		{"null-null equal", Null(), Null(), true},
		{"null-string never equal", Null(), String(""), false},
		{"array elementwise equal", Array(Integer(1), String("x")), Array(Integer(1), String("x")), true},
		{"array length mismatch", Array(Integer(1)), Array(Integer(1), Integer(2)), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.a.Equal(tc.b); got != tc.want {
				t.Fatalf("Equal(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestValueCompare(t *testing.T) {
	cases := []struct {
		name    string
		a, b    Value
		wantCmp int
		wantOK  bool
	}{
		{"integer less than float", Integer(2), Float(2.5), -1, true},
		{"float greater than integer", Float(5.0), Integer(3), 1, true},
		{"equal across kinds", Integer(4), Float(4.0), 0, true},
		{"string ordering", String("abc"), String("abd"), -1, true},
		{"string vs integer not ordered", String("3"), Integer(3), 0, false},
		{"boolean not ordered", Boolean(true), Boolean(false), 0, false},
		{"null not ordered", Null(), Integer(1), 0, false},
		{"array not ordered", Array(Integer(1)), Array(Integer(2)), 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmp, ok := tc.a.Compare(tc.b)
			if ok != tc.wantOK {
				t.Fatalf("Compare(%v, %v) ok = %v, want %v", tc.a, tc.b, ok, tc.wantOK)
			}
			if ok && cmp != tc.wantCmp {
				t.Fatalf("Compare(%v, %v) = %d, want %d", tc.a, tc.b, cmp, tc.wantCmp)
			}
		})
	}
}

func TestValueAccessors(t *testing.T) {
	if s, ok := String("hi").AsString(); !ok || s != "hi" {
		t.Fatalf("AsString mismatch: %q %v", s, ok)
	}
	if _, ok := Integer(1).AsString(); ok {
		t.Fatal("AsString should fail on Integer")
	}
	if i, ok := Integer(42).AsInteger(); !ok || i != 42 {
		t.Fatalf("AsInteger mismatch: %d %v", i, ok)
	}
	if f, ok := Float(1.5).AsFloat(); !ok || f != 1.5 {
		t.Fatalf("AsFloat mismatch: %f %v", f, ok)
	}
	if b, ok := Boolean(true).AsBoolean(); !ok || !b {
		t.Fatalf("AsBoolean mismatch: %v %v", b, ok)
	}
	arr, ok := Array(Integer(1), Integer(2)).AsArray()
	if !ok || len(arr) != 2 {
		t.Fatalf("AsArray mismatch: %v %v", arr, ok)
	}
	if !Null().IsNull() {
		t.Fatal("Null().IsNull() should be true")
	}
}
