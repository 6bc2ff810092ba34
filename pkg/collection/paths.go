package collection

import "github.com/piramid-db/piramid/pkg/piramid"

// walPath derives a collection's `P.wal.db` path from its data-file path.
func walPath(dataPath string) string {
	return dataPath + ".wal.db"
}

// annSidecarPath derives the ANN sidecar path for kind. Flat has no
// sidecar: it carries no structure beyond the live id set, which the
// entry-pointer table already captures.
func annSidecarPath(dataPath string, kind piramid.IndexKind) string {
	switch kind {
	case piramid.IndexHNSW:
		return dataPath + ".hnsw.db"
	case piramid.IndexIVF:
		return dataPath + ".ivf.db"
	default:
		return ""
	}
}
