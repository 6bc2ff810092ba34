package mmapfile

import (
	"path/filepath"
	"testing"
)

func TestOpenCreatesAndGrows(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data")

	f, err := Open(path, 4096)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()

	if f.Len() != 4096 {
		t.Fatalf("expected initial len 4096, got %d", f.Len())
	}

	if err := f.EnsureCapacity(8192); err != nil {
		t.Fatalf("EnsureCapacity failed: %v", err)
	}
	if f.Len() < 8192*2 {
		t.Fatalf("expected geometric growth to at least 2x required, got %d", f.Len())
	}
}

func TestWriteAtThenReadAt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data")
	f, err := Open(path, 4096)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()

	payload := []byte("hello, piramid")
	if err := f.WriteAt(0, payload); err != nil {
		t.Fatalf("WriteAt failed: %v", err)
	}
	got, err := f.ReadAt(0, len(payload))
	if err != nil {
		t.Fatalf("ReadAt failed: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("round trip mismatch: got %q want %q", got, payload)
	}
}

func TestReadAtOutOfBounds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data")
	f, err := Open(path, 4096)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()

	if _, err := f.ReadAt(4096, 1); err == nil {
		t.Fatal("expected out-of-bounds read to fail")
	}
}

func TestReopenPreservesData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data")
	f, err := Open(path, 4096)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	payload := []byte("durable")
	if err := f.WriteAt(0, payload); err != nil {
		t.Fatalf("WriteAt failed: %v", err)
	}
	if err := f.Sync(); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	f2, err := Open(path, 4096)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer f2.Close()
	got, err := f2.ReadAt(0, len(payload))
	if err != nil {
		t.Fatalf("ReadAt after reopen failed: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("data not preserved across reopen: got %q", got)
	}
}
