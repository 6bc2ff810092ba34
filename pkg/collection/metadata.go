package collection

import (
	"encoding/json"
	"os"

	"github.com/piramid-db/piramid/pkg/piramid"
)

// schemaVersion is bumped whenever the on-disk sidecar formats change in
// a way that requires a migration; Open refuses to load a mismatched
// collection rather than silently misinterpret it.
const schemaVersion = 1

// Metadata is the `P.metadata.db` sidecar: a collection's identity and
// shape, independent of any one document (spec §6).
type Metadata struct {
	Name          string `json:"name"`
	Dimensions    int    `json:"dimensions"` // 0 until the first document is inserted
	VectorCount   int    `json:"vector_count"`
	SchemaVersion int    `json:"schema_version"`
}

// loadMetadata reads the sidecar at path. A missing file yields a fresh
// Metadata for a brand-new collection named name.
func loadMetadata(path, name string) (Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Metadata{Name: name, SchemaVersion: schemaVersion}, nil
		}
		return Metadata{}, piramid.NewIOError("read", path, err)
	}
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return Metadata{}, piramid.NewCorruptedDataError("collection metadata unparseable", err)
	}
	if m.SchemaVersion != schemaVersion {
		return Metadata{}, piramid.NewCorruptedDataError("collection metadata schema version mismatch", nil)
	}
	return m, nil
}

func saveMetadata(path string, m Metadata) error {
	data, err := json.Marshal(m)
	if err != nil {
		return piramid.NewSerializationError("collection metadata", err)
	}
	return piramid.AtomicWriteFile(path, data)
}

// metadataPath derives a collection's `P.metadata.db` sidecar path from
// its data-file path P (spec §6's file layout).
func metadataPath(dataPath string) string {
	return dataPath + ".metadata.db"
}
