package collection

import (
	"golang.org/x/sys/unix"

	"github.com/piramid-db/piramid/pkg/piramid"
)

// diskGuard implements the advisory disk-space check of spec §5: before
// each write, if free space on the filesystem backing dir falls below
// MinFreeBytes, checkWritable rejects the write: with ReadOnlyOnLowSpace
// set the collection also switches to read-only mode, otherwise the write
// alone fails with ServiceUnavailableError.
type diskGuard struct {
	opts piramid.DiskGuardOptions
	dir  string
}

func newDiskGuard(opts piramid.DiskGuardOptions, dir string) *diskGuard {
	return &diskGuard{opts: opts, dir: dir}
}

// lowSpace reports whether free space has fallen below the configured
// floor. A Statfs failure is treated as "not low" — an advisory guard
// that can't read the filesystem shouldn't itself start rejecting
// writes.
func (g *diskGuard) lowSpace() bool {
	if g.opts.MinFreeBytes <= 0 {
		return false
	}
	var stat unix.Statfs_t
	if err := unix.Statfs(g.dir, &stat); err != nil {
		return false
	}
	free := int64(stat.Bavail) * int64(stat.Bsize)
	return free < g.opts.MinFreeBytes
}

// cacheGuard compares a collection's in-memory vector cache usage, as
// summed by Collection.Stats(), against CacheGuardOptions.MaxBytes; it
// runs only when Stats() is called, not on a timer. It is observability-only in
// this implementation: the vector cache backs every ANN index's
// VectorsView, so destructively clearing it mid-flight would corrupt
// concurrent searches rather than just cost a cache-miss the way an
// LRU read cache would. Exceeding the budget is surfaced through
// Collection.Stats()/metrics rather than acted on; see DESIGN.md.
type cacheGuard struct {
	opts piramid.CacheGuardOptions
}

func newCacheGuard(opts piramid.CacheGuardOptions) *cacheGuard {
	return &cacheGuard{opts: opts}
}

func (g *cacheGuard) overBudget(usedBytes int64) bool {
	if g.opts.MaxBytes <= 0 {
		return false
	}
	return usedBytes > g.opts.MaxBytes
}
