package docstore

import (
	"path/filepath"
	"testing"

	"github.com/piramid-db/piramid/pkg/entrytable"
	"github.com/piramid-db/piramid/pkg/metadata"
	"github.com/piramid-db/piramid/pkg/mmapfile"
	"github.com/piramid-db/piramid/pkg/piramid"
)

func openStore(t *testing.T) (*Store, func()) {
	t.Helper()
	dir := t.TempDir()
	f, err := mmapfile.Open(filepath.Join(dir, "data"), 64)
	if err != nil {
		t.Fatalf("mmapfile.Open failed: %v", err)
	}
	return New(f), func() { f.Close() }
}

func TestAppendReadRoundTrip(t *testing.T) {
	s, closeFn := openStore(t)
	defer closeFn()

	doc := piramid.Document{
		Id:     piramid.NewId(),
		Vector: []float32{1.5, -2.25, 3},
		Text:   []byte("hello"),
		Metadata: piramid.Metadata{
			"tag":   metadata.String("a"),
			"count": metadata.Integer(3),
		},
	}

	ptr, err := s.Append(doc, 0)
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	got, err := s.Read(ptr)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got.Id != doc.Id {
		t.Fatalf("expected id %v, got %v", doc.Id, got.Id)
	}
	if len(got.Vector) != len(doc.Vector) {
		t.Fatalf("expected vector length %d, got %d", len(doc.Vector), len(got.Vector))
	}
	for i := range doc.Vector {
		if got.Vector[i] != doc.Vector[i] {
			t.Fatalf("vector[%d]: expected %v, got %v", i, doc.Vector[i], got.Vector[i])
		}
	}
	if string(got.Text) != string(doc.Text) {
		t.Fatalf("expected text %q, got %q", doc.Text, got.Text)
	}
	if !got.Metadata["tag"].Equal(doc.Metadata["tag"]) {
		t.Fatalf("expected tag %v, got %v", doc.Metadata["tag"], got.Metadata["tag"])
	}
}

func TestAppendEmptyVectorAndMetadata(t *testing.T) {
	s, closeFn := openStore(t)
	defer closeFn()

	doc := piramid.Document{Id: piramid.NewId()}
	ptr, err := s.Append(doc, 0)
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	got, err := s.Read(ptr)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(got.Vector) != 0 || len(got.Text) != 0 || len(got.Metadata) != 0 {
		t.Fatalf("expected empty fields, got %+v", got)
	}
}

func TestAppendAtOffsetGrowsMmap(t *testing.T) {
	s, closeFn := openStore(t)
	defer closeFn()

	doc := piramid.Document{Id: piramid.NewId(), Vector: []float32{1, 2, 3, 4, 5, 6, 7, 8}}
	ptr, err := s.Append(doc, 1000)
	if err != nil {
		t.Fatalf("Append at large offset failed: %v", err)
	}
	if ptr.Offset != 1000 {
		t.Fatalf("expected offset 1000, got %d", ptr.Offset)
	}
	got, err := s.Read(ptr)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(got.Vector) != 8 {
		t.Fatalf("expected 8-length vector, got %d", len(got.Vector))
	}
}

func TestReadOutOfBoundsWindowFails(t *testing.T) {
	s, closeFn := openStore(t)
	defer closeFn()

	if _, err := s.Read(entrytable.EntryPointer{Offset: 0, Length: 1 << 30}); err == nil {
		t.Fatal("expected error reading out-of-bounds window")
	}
}

func TestReadCorruptBytesFails(t *testing.T) {
	s, closeFn := openStore(t)
	defer closeFn()

	doc := piramid.Document{Id: piramid.NewId(), Vector: []float32{1}}
	ptr, err := s.Append(doc, 0)
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	// Truncate the claimed window below the fixed 16-byte id plus 4-byte
	// vector-length header.
	ptr.Length = 4
	if _, err := s.Read(ptr); err == nil {
		t.Fatal("expected error decoding truncated document")
	}
}
