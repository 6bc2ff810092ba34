package wal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/piramid-db/piramid/pkg/piramid"
)

func TestOpenCreatesHeaderedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.wal.db")

	w, err := Open(path, false)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer w.Close()

	if w.NextSeq() != 1 {
		t.Fatalf("expected NextSeq()==1 on fresh WAL, got %d", w.NextSeq())
	}
}

func TestLogInsertAssignsMonotonicSeq(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.wal.db")
	w, err := Open(path, false)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer w.Close()

	var lastSeq uint64
	for i := 0; i < 10; i++ {
		seq, err := w.LogInsert(piramid.NewId(), []float32{1, 2, 3}, []byte("x"), nil)
		if err != nil {
			t.Fatalf("LogInsert failed: %v", err)
		}
		if seq <= lastSeq {
			t.Fatalf("seq not monotonic: prev=%d, got=%d", lastSeq, seq)
		}
		lastSeq = seq
	}
}

func TestReplaySkipsUpToMinSeq(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.wal.db")
	w, err := Open(path, false)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	ids := make([]piramid.Id, 5)
	for i := range ids {
		ids[i] = piramid.NewId()
		if _, err := w.LogInsert(ids[i], []float32{float32(i)}, nil, nil); err != nil {
			t.Fatalf("LogInsert failed: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	records, err := Replay(path, 2)
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records with seq > 2, got %d", len(records))
	}
	for i, r := range records {
		if r.Seq != uint64(3+i) {
			t.Fatalf("record %d: expected seq %d, got %d", i, 3+i, r.Seq)
		}
	}
}

func TestCheckpointThenRotateIsReplayNoOp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.wal.db")
	w, err := Open(path, false)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer w.Close()

	for i := 0; i < 3; i++ {
		if _, err := w.LogInsert(piramid.NewId(), []float32{1}, nil, nil); err != nil {
			t.Fatalf("LogInsert failed: %v", err)
		}
	}
	seq, err := w.Checkpoint(1000)
	if err != nil {
		t.Fatalf("Checkpoint failed: %v", err)
	}

	metaPath := MetaPath(path)
	if err := SaveMeta(metaPath, Meta{LastCheckpointSeq: seq}); err != nil {
		t.Fatalf("SaveMeta failed: %v", err)
	}
	if err := w.Rotate(); err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}

	meta, err := LoadMeta(metaPath)
	if err != nil {
		t.Fatalf("LoadMeta failed: %v", err)
	}
	records, err := Replay(path, meta.LastCheckpointSeq)
	if err != nil {
		t.Fatalf("Replay after rotate failed: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no-op replay after checkpoint+rotate, got %d records", len(records))
	}
}

func TestReopenPreservesSeq(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.wal.db")
	w, err := Open(path, false)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	var lastSeq uint64
	for i := 0; i < 5; i++ {
		lastSeq, err = w.LogInsert(piramid.NewId(), []float32{1}, nil, nil)
		if err != nil {
			t.Fatalf("LogInsert failed: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	w2, err := Open(path, false)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer w2.Close()
	if w2.NextSeq() != lastSeq+1 {
		t.Fatalf("expected NextSeq()==%d after reopen, got %d", lastSeq+1, w2.NextSeq())
	}
}

func TestOpenRejectsBadHeaderVersion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.wal.db")
	if err := os.WriteFile(path, []byte("{\"version\":2}\n"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := Open(path, false); err == nil {
		t.Fatal("expected error opening WAL with mismatched header version")
	}
}
