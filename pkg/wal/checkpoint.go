package wal

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/piramid-db/piramid/pkg/piramid"
)

// Meta is the WAL-meta sidecar: the seq of the last durable checkpoint.
type Meta struct {
	LastCheckpointSeq uint64 `json:"last_checkpoint_seq"`
}

// LoadMeta reads the WAL-meta sidecar at path. A missing file yields a
// zero Meta (no prior checkpoint).
func LoadMeta(path string) (Meta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Meta{}, nil
		}
		return Meta{}, piramid.NewIOError("read", path, err)
	}
	var m Meta
	if err := json.Unmarshal(data, &m); err != nil {
		return Meta{}, piramid.NewCorruptedDataError("wal meta unparseable", err)
	}
	return m, nil
}

// SaveMeta atomically persists meta to path: write to a temp file in the
// same directory, fsync it, then rename over path.
func SaveMeta(path string, meta Meta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return piramid.NewSerializationError("wal meta", err)
	}
	return piramid.AtomicWriteFile(path, data)
}

// MetaPath derives a collection's `P.wal.meta` sidecar path from its
// `P.wal.db` WAL path (spec §6's file layout).
func MetaPath(walPath string) string {
	return strings.TrimSuffix(walPath, ".db") + ".meta"
}
