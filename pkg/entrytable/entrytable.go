// Package entrytable implements the entry-pointer table (spec §4.5): the
// {document id → (offset, length)} mapping into a collection's mmap data
// file, persisted as a whole-table snapshot after every write.
package entrytable

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/piramid-db/piramid/pkg/piramid"
)

// EntryPointer locates a serialized document within a collection's mmap
// file (spec §3).
type EntryPointer struct {
	Offset uint64 `json:"offset"`
	Length uint32 `json:"length"`
}

// End returns the first byte past this pointer's window.
func (p EntryPointer) End() uint64 { return p.Offset + uint64(p.Length) }

// Table is the in-memory entry-pointer table. Safe for concurrent use;
// callers composing multiple calls atomically (e.g. collection writes)
// still serialize through their own writer lock per spec §5.
type Table struct {
	mu      sync.RWMutex
	entries map[piramid.Id]EntryPointer
}

// New returns an empty table.
func New() *Table {
	return &Table{entries: make(map[piramid.Id]EntryPointer)}
}

// Load reads the whole-table snapshot at path. A missing file yields an
// empty table (spec §4.5); a present-but-unparseable file is
// CorruptedDataError and the caller must decide whether that's fatal.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, piramid.NewIOError("read", path, err)
	}
	entries := make(map[piramid.Id]EntryPointer)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, piramid.NewCorruptedDataError("entry pointer table unparseable", err)
		}
	}
	return &Table{entries: entries}, nil
}

// Save atomically persists the whole table to path (write-tmp, fsync,
// rename), the same durable-sidecar pattern as the WAL-meta file.
func (t *Table) Save(path string) error {
	t.mu.RLock()
	data, err := json.Marshal(t.entries)
	t.mu.RUnlock()
	if err != nil {
		return piramid.NewSerializationError("entry pointer table", err)
	}
	return piramid.AtomicWriteFile(path, data)
}

// Get returns the pointer stored for id, if any.
func (t *Table) Get(id piramid.Id) (EntryPointer, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.entries[id]
	return p, ok
}

// Set records or replaces the pointer for id.
func (t *Table) Set(id piramid.Id, p EntryPointer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[id] = p
}

// Delete removes id from the table. A no-op if id is absent.
func (t *Table) Delete(id piramid.Id) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, id)
}

// Len returns the number of live entries.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// NextOffset returns the max End() over every entry, or 0 if the table is
// empty — the append offset for the next document (spec §4.4).
func (t *Table) NextOffset() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var max uint64
	for _, p := range t.entries {
		if end := p.End(); end > max {
			max = end
		}
	}
	return max
}

// Snapshot returns a copy of the id→pointer map, for callers that need to
// iterate (index rebuild, compact).
func (t *Table) Snapshot() map[piramid.Id]EntryPointer {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[piramid.Id]EntryPointer, len(t.entries))
	for id, p := range t.entries {
		out[id] = p
	}
	return out
}

// Clear empties the table in place (used by compact()).
func (t *Table) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = make(map[piramid.Id]EntryPointer)
}

// IndexPath derives a collection's `P.index.db` sidecar path from its
// data-file path P (spec §6's file layout).
func IndexPath(dataPath string) string {
	return dataPath + ".index.db"
}
