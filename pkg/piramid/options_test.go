package piramid

import (
	"errors"
	"testing"
)

func TestDefaultOptionsValidates(t *testing.T) {
	if err := DefaultOptions().Validate(); err != nil {
		t.Fatalf("DefaultOptions() should validate, got: %v", err)
	}
}

func TestValidateRejectsBadFilterOverfetch(t *testing.T) {
	opts := DefaultOptions()
	opts.Search.FilterOverfetch = 0
	err := opts.Validate()
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigError, got %v", err)
	}
	if cfgErr.Field != "search.filter_overfetch" {
		t.Fatalf("unexpected field: %s", cfgErr.Field)
	}
}

func TestValidateRejectsZeroHNSWM(t *testing.T) {
	opts := DefaultOptions()
	opts.Index.HNSW.M = 0
	if err := opts.Validate(); err == nil {
		t.Fatal("expected error for zero HNSW.M")
	}
}

func TestNotFoundErrorUnwrapsToSentinel(t *testing.T) {
	err := NewNotFoundError(NewId())
	if !errors.Is(err, ErrNotFound) {
		t.Fatal("NotFoundError should unwrap to ErrNotFound")
	}
}

func TestIdRoundTrip(t *testing.T) {
	id := NewId()
	parsed, err := ParseId(id.String())
	if err != nil {
		t.Fatalf("ParseId failed: %v", err)
	}
	if parsed != id {
		t.Fatalf("round trip mismatch: %s != %s", parsed, id)
	}
}
