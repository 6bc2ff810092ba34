package piramid

import "os"

// AtomicWriteFile writes data to path via a temp file in the same
// directory, fsyncs it, then renames it over path — the crash-safe
// sidecar write pattern every durable-state file in a collection
// (WAL-meta, entry-pointer table, ANN sidecars) uses.
func AtomicWriteFile(path string, data []byte) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return NewIOError("create", tmp, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return NewIOError("write", tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return NewIOError("fsync", tmp, err)
	}
	if err := f.Close(); err != nil {
		return NewIOError("close", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return NewIOError("rename", path, err)
	}
	return nil
}
