// Package mmapfile implements the memory-mapped file manager backing a
// collection's append-only data file (spec §4.1): it opens the file,
// ensures a minimum size, maps it read/write, and grows the mapping
// geometrically on demand.
package mmapfile

import (
	"os"
	"sync"

	"github.com/edsrzf/mmap-go"

	"github.com/piramid-db/piramid/pkg/piramid"
)

const pageSize = 4096

// File owns a data file and its current memory mapping. All methods are
// safe for concurrent readers; EnsureCapacity must be called under the
// caller's writer lock since it replaces the mapping.
type File struct {
	mu   sync.RWMutex
	path string
	f    *os.File
	m    mmap.MMap
}

// Open opens (creating if absent) the file at path, truncates it up to
// initialSize if smaller, and maps it read/write.
func Open(path string, initialSize int64) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, piramid.NewIOError("open", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, piramid.NewIOError("stat", path, err)
	}
	size := info.Size()
	if size < initialSize {
		if err := f.Truncate(initialSize); err != nil {
			f.Close()
			return nil, piramid.NewIOError("truncate", path, err)
		}
		size = initialSize
	}
	if size == 0 {
		f.Close()
		return nil, piramid.NewIOError("open", path, os.ErrInvalid)
	}

	m, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return nil, piramid.NewIOError("mmap", path, err)
	}

	return &File{path: path, f: f, m: m}, nil
}

// Len returns the current mapped length in bytes.
func (file *File) Len() int64 {
	file.mu.RLock()
	defer file.mu.RUnlock()
	return int64(len(file.m))
}

// ReadAt returns a copy of the bytes in [offset, offset+length).
func (file *File) ReadAt(offset int64, length int) ([]byte, error) {
	file.mu.RLock()
	defer file.mu.RUnlock()
	if offset < 0 || length < 0 || offset+int64(length) > int64(len(file.m)) {
		return nil, piramid.NewCorruptedDataError("read window out of bounds", nil)
	}
	out := make([]byte, length)
	copy(out, file.m[offset:offset+int64(length)])
	return out, nil
}

// WriteAt copies data into the mapping at offset. The caller must have
// already ensured capacity; WriteAt does not grow the mapping.
func (file *File) WriteAt(offset int64, data []byte) error {
	file.mu.Lock()
	defer file.mu.Unlock()
	if offset < 0 || offset+int64(len(data)) > int64(len(file.m)) {
		return piramid.NewCorruptedDataError("write window out of bounds", nil)
	}
	copy(file.m[offset:offset+int64(len(data))], data)
	return nil
}

// EnsureCapacity grows the underlying file and remaps it if required is
// greater than the current mapped length. Growth is geometric: the new
// size is 2×required. Must be called with no concurrent readers of the
// mapping in flight from the caller's perspective (the writer lock).
func (file *File) EnsureCapacity(required int64) error {
	file.mu.Lock()
	defer file.mu.Unlock()

	if required <= int64(len(file.m)) {
		return nil
	}

	newSize := required * 2

	if err := file.m.Unmap(); err != nil {
		return piramid.NewIOError("unmap", file.path, err)
	}
	if err := file.f.Truncate(newSize); err != nil {
		return piramid.NewIOError("truncate", file.path, err)
	}
	m, err := mmap.Map(file.f, mmap.RDWR, 0)
	if err != nil {
		return piramid.NewIOError("remap", file.path, err)
	}
	file.m = m
	return nil
}

// WarmPages touches one byte per 4 KiB page to fault the mapping into
// the process's resident set, reducing the latency of the first real
// access to each page.
func (file *File) WarmPages() {
	file.mu.RLock()
	defer file.mu.RUnlock()
	sum := byte(0)
	for off := 0; off < len(file.m); off += pageSize {
		sum += file.m[off]
	}
	_ = sum
}

// Sync flushes the mapping and the underlying file to disk.
func (file *File) Sync() error {
	file.mu.RLock()
	defer file.mu.RUnlock()
	if err := file.m.Flush(); err != nil {
		return piramid.NewIOError("flush", file.path, err)
	}
	return nil
}

// Close unmaps and closes the underlying file.
func (file *File) Close() error {
	file.mu.Lock()
	defer file.mu.Unlock()
	if err := file.m.Unmap(); err != nil {
		return piramid.NewIOError("unmap", file.path, err)
	}
	if err := file.f.Close(); err != nil {
		return piramid.NewIOError("close", file.path, err)
	}
	return nil
}
