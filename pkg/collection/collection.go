// Package collection implements the orchestrator that ties every other
// package together into the embeddable unit of the database: a single
// named collection backed by one mmap data file, an entry-pointer
// table, a WAL, and an ANN index (spec §4.7).
package collection

import (
	"bytes"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/piramid-db/piramid/pkg/distance"
	"github.com/piramid-db/piramid/pkg/docstore"
	"github.com/piramid-db/piramid/pkg/entrytable"
	"github.com/piramid-db/piramid/pkg/index"
	"github.com/piramid-db/piramid/pkg/index/flat"
	"github.com/piramid-db/piramid/pkg/index/hnsw"
	"github.com/piramid-db/piramid/pkg/index/ivf"
	"github.com/piramid-db/piramid/pkg/metadata"
	"github.com/piramid-db/piramid/pkg/mmapfile"
	"github.com/piramid-db/piramid/pkg/piramid"
	"github.com/piramid-db/piramid/pkg/quantize"
	"github.com/piramid-db/piramid/pkg/search"
	"github.com/piramid-db/piramid/pkg/wal"

	"github.com/piramid-db/piramid/internal/logger"
	"github.com/piramid-db/piramid/internal/metrics"
)

// defaultDuplicateNeighbors bounds the per-id neighbor fetch inside
// FindDuplicates; it only needs to be comfortably larger than the
// number of true near-duplicates any one document is expected to have.
const defaultDuplicateNeighbors = 10

// SearchParams carries the per-call tuning knobs of spec §4.7's
// `search(query, k, metric, {ef?, nprobe?, overfetch?, filter?, mode?})`.
// Zero values mean "use the collection's configured default".
type SearchParams struct {
	Ef        int
	NumProbes int
	Overfetch int
	Filter    metadata.Filter
	Mode      piramid.ExecutionMode
}

// Collection is a single open vector collection: one mmap data file,
// its entry-pointer table, WAL, ANN index, and in-memory vector cache,
// all guarded by one multi-reader/single-writer lock (spec §5).
type Collection struct {
	mu sync.RWMutex

	name     string
	dataPath string
	opts     piramid.Options

	file  *mmapfile.File
	store *docstore.Store
	table *entrytable.Table
	wal   *wal.WAL
	idx   index.Index
	kind  piramid.IndexKind

	annPath string

	vectors    map[piramid.Id][]float32
	dimensions int

	metadata Metadata

	opsSinceCheckpoint int
	lastCheckpoint     time.Time

	readOnly bool
	closed   bool

	disk  *diskGuard
	cache *cacheGuard

	log *logger.Logger
	met *metrics.Metrics
}

// Open implements spec §4.7's nine-step open sequence. log and met may
// both be nil: a nil logger falls back to the package-level global, a
// nil metrics registry disables metrics recording entirely.
func Open(path string, opts piramid.Options, log *logger.Logger, met *metrics.Metrics) (*Collection, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	name := filepath.Base(path)
	clog := log.CollectionLogger(name)

	// 1. Open/create data file; ensure initial size; mmap.
	file, err := mmapfile.Open(path, opts.Memory.InitialMmapSize)
	if err != nil {
		return nil, err
	}

	// 2. Load entry-pointer table (may be empty).
	table, err := entrytable.Load(entrytable.IndexPath(path))
	if err != nil {
		file.Close()
		return nil, err
	}
	// An empty table is only legitimate for a freshly-created data file.
	// mmapfile never truncates, so a data file larger than the initial
	// size it would have been created at means documents were actually
	// written here before the entry-pointer sidecar vanished (or was
	// never flushed) — warn-and-continue would let the next insert
	// overwrite those bytes at offset 0 (spec §4.5).
	if table.Len() == 0 && file.Len() > opts.Memory.InitialMmapSize {
		file.Close()
		return nil, piramid.NewCorruptedDataError(
			fmt.Sprintf("entry pointer table missing/empty but data file %q is %d bytes (initial size %d)",
				path, file.Len(), opts.Memory.InitialMmapSize), nil)
	}

	// 3. Load ANN index sidecar; schedule a rebuild if absent and
	// entries already exist.
	kind := index.Select(opts.Index.Kind, table.Len())
	annPath := annSidecarPath(path, kind)
	idx, sidecarFound, err := loadIndex(kind, annPath, opts, opts.Metric, opts.Execution.Mode)
	if err != nil {
		file.Close()
		return nil, err
	}
	needsRebuild := !sidecarFound && table.Len() > 0
	if needsRebuild {
		clog.LogIndexRebuild(kind.String(), table.Len(), "ann sidecar missing on open")
	}

	// 4. Load metadata sidecar; validate schema_version.
	meta, err := loadMetadata(metadataPath(path), name)
	if err != nil {
		file.Close()
		return nil, err
	}

	// 5. Load WAL-meta -> last_checkpoint_seq.
	wPath := walPath(path)
	walMeta, err := wal.LoadMeta(wal.MetaPath(wPath))
	if err != nil {
		file.Close()
		return nil, err
	}
	w, err := wal.Open(wPath, opts.WAL.SyncOnWrite)
	if err != nil {
		file.Close()
		return nil, err
	}

	c := &Collection{
		name:           name,
		dataPath:       path,
		opts:           opts,
		file:           file,
		store:          docstore.New(file),
		table:          table,
		wal:            w,
		idx:            idx,
		kind:           kind,
		annPath:        annPath,
		vectors:        make(map[piramid.Id][]float32),
		dimensions:     meta.Dimensions,
		metadata:       meta,
		lastCheckpoint: time.Now(),
		disk:           newDiskGuard(opts.DiskGuard, filepath.Dir(path)),
		cache:          newCacheGuard(opts.CacheGuard),
		log:            clog,
		met:            met,
	}

	// 6. Replay WAL entries with seq > last_checkpoint_seq.
	start := time.Now()
	records, err := wal.Replay(wPath, walMeta.LastCheckpointSeq)
	if err != nil {
		file.Close()
		w.Close()
		return nil, err
	}
	applied := 0
	for _, r := range records {
		switch r.Kind {
		case wal.KindInsert, wal.KindUpdate:
			if err := c.mutateInsert(r.Id, r.Vector, r.Text, r.Metadata, r.Vector); err != nil {
				file.Close()
				w.Close()
				return nil, err
			}
			applied++
		case wal.KindDelete:
			c.mutateDelete(r.Id)
			applied++
		case wal.KindCheckpoint:
			// informational only; last_checkpoint_seq already reflects it
		}
	}
	clog.LogWALReplay(applied, time.Since(start), nil)

	// 7. Rebuild the in-memory vector cache from the entry-pointer table
	// (this also folds in anything just replayed, since mutateInsert
	// above already wrote those documents into the data file).
	if err := c.rebuildCache(); err != nil {
		file.Close()
		w.Close()
		return nil, err
	}

	// 8. If replay applied anything, checkpoint immediately.
	if applied > 0 {
		if err := c.checkpointLocked(); err != nil {
			file.Close()
			w.Close()
			return nil, err
		}
	}

	// 9. If the ANN sidecar was missing, rebuild it from every live id.
	if needsRebuild {
		ids := make([]piramid.Id, 0, len(c.vectors))
		for id := range c.vectors {
			ids = append(ids, id)
		}
		if err := c.rebuildIndex(ids); err != nil {
			file.Close()
			w.Close()
			return nil, err
		}
	}

	return c, nil
}

func loadIndex(kind piramid.IndexKind, annPath string, opts piramid.Options, metric piramid.Metric, mode piramid.ExecutionMode) (index.Index, bool, error) {
	switch kind {
	case piramid.IndexHNSW:
		idx, found, err := hnsw.Load(annPath, opts.Index.HNSW, metric, mode)
		return idx, found, err
	case piramid.IndexIVF:
		idx, found, err := ivf.Load(annPath, opts.Index.IVF, metric, mode)
		return idx, found, err
	default:
		return flat.New(metric, mode), true, nil
	}
}

// rebuildIndex re-inserts every id in ids into the current ANN index
// from scratch, dispatching to each variant's bulk-rebuild path where
// one exists (HNSW's graph Rebuild, IVF's k-means Train) rather than a
// plain Insert loop, since those variants have structure that a
// one-at-a-time insert wouldn't reconstruct as well.
func (c *Collection) rebuildIndex(ids []piramid.Id) error {
	switch idx := c.idx.(type) {
	case *hnsw.Index:
		return idx.Rebuild(ids, c.vectorView)
	case *ivf.Index:
		return idx.Train(ids, c.vectorView)
	default:
		for _, id := range ids {
			v, ok := c.vectors[id]
			if !ok {
				continue
			}
			if err := c.idx.Insert(id, v, c.vectorView); err != nil {
				return err
			}
		}
		return nil
	}
}

func (c *Collection) rebuildCache() error {
	c.vectors = make(map[piramid.Id][]float32, c.table.Len())
	for id, ptr := range c.table.Snapshot() {
		doc, err := c.store.Read(ptr)
		if err != nil {
			return err
		}
		c.vectors[id] = doc.Vector
	}
	return nil
}

func (c *Collection) vectorView(id piramid.Id) ([]float32, bool) {
	v, ok := c.vectors[id]
	return v, ok
}

func (c *Collection) metadataView(id piramid.Id) (piramid.Metadata, bool) {
	ptr, ok := c.table.Get(id)
	if !ok {
		return nil, false
	}
	doc, err := c.store.Read(ptr)
	if err != nil {
		return nil, false
	}
	return doc.Metadata, true
}

func (c *Collection) hydrate(id piramid.Id) (piramid.Document, bool) {
	ptr, ok := c.table.Get(id)
	if !ok {
		return piramid.Document{}, false
	}
	doc, err := c.store.Read(ptr)
	if err != nil {
		return piramid.Document{}, false
	}
	return doc, true
}

// mutateInsert is the internal mutator shared by the write paths and
// WAL replay: it never logs to the WAL itself (the caller decides
// that), it just applies the effect.
func (c *Collection) mutateInsert(id piramid.Id, diskVector []float32, text []byte, md piramid.Metadata, cacheVector []float32) error {
	ptr, err := c.store.Append(piramid.Document{Id: id, Vector: diskVector, Text: text, Metadata: md}, c.table.NextOffset())
	if err != nil {
		return err
	}
	c.table.Set(id, ptr)
	c.vectors[id] = cacheVector
	return c.idx.Insert(id, cacheVector, c.vectorView)
}

func (c *Collection) mutateDelete(id piramid.Id) {
	c.table.Delete(id)
	delete(c.vectors, id)
	c.idx.Remove(id)
}

// effectiveVectors applies int8 quantization (spec §4.2) when
// configured. The disk copy is always the lossy round-tripped
// approximation when quantization is enabled, since the data file has
// no separate full-precision slot; the cache copy stays full precision
// when disk_only is set, trading a bit of extra resident memory for
// exact in-process scoring between checkpoints. A reopen/replay always
// rebuilds the cache from what's on disk, so disk_only's precision
// benefit is scoped to the lifetime of one open Collection, not
// preserved across a restart — there's nowhere durable to keep the
// exact copy without doubling on-disk storage.
func (c *Collection) effectiveVectors(vector []float32) (diskVector, cacheVector []float32) {
	if c.opts.Quantization.Level != piramid.QuantizationInt8 {
		return vector, vector
	}
	approx := quantize.Dequantize(quantize.Quantize(vector))
	if c.opts.Quantization.DiskOnly {
		return approx, vector
	}
	return approx, approx
}

func (c *Collection) checkDimension(vector []float32) error {
	if c.dimensions != 0 && len(vector) != c.dimensions {
		return piramid.NewDimensionMismatchError(c.dimensions, len(vector))
	}
	return nil
}

func (c *Collection) checkLimits(vector []float32) error {
	l := c.opts.Limits
	if l.MaxVectorBytes > 0 && int64(len(vector)*4) > l.MaxVectorBytes {
		return piramid.NewLimitsExceededError("max_vector_bytes", int64(len(vector)*4), l.MaxVectorBytes)
	}
	if l.MaxVectors > 0 && int64(c.table.Len()+1) > l.MaxVectors {
		return piramid.NewLimitsExceededError("max_vectors", int64(c.table.Len()+1), l.MaxVectors)
	}
	if l.MaxBytes > 0 && c.file.Len() > l.MaxBytes {
		return piramid.NewLimitsExceededError("max_bytes", c.file.Len(), l.MaxBytes)
	}
	return nil
}

func (c *Collection) checkWritable() error {
	if c.closed {
		return piramid.NewServiceUnavailableError("collection is closed")
	}
	if c.readOnly {
		return piramid.NewReadOnlyModeError("disk guard previously tripped")
	}
	if c.disk.lowSpace() {
		if c.opts.DiskGuard.ReadOnlyOnLowSpace {
			c.readOnly = true
			return piramid.NewReadOnlyModeError("free disk space below configured minimum")
		}
		return piramid.NewServiceUnavailableError("free disk space below configured minimum")
	}
	return nil
}

func (c *Collection) logInsert(id piramid.Id, vector []float32, text []byte, md piramid.Metadata) error {
	if !c.opts.WAL.Enabled {
		return nil
	}
	_, err := c.wal.LogInsert(id, vector, text, md)
	return err
}

func (c *Collection) logUpdate(id piramid.Id, vector []float32, text []byte, md piramid.Metadata) error {
	if !c.opts.WAL.Enabled {
		return nil
	}
	_, err := c.wal.LogUpdate(id, vector, text, md)
	return err
}

func (c *Collection) logDelete(id piramid.Id) error {
	if !c.opts.WAL.Enabled {
		return nil
	}
	_, err := c.wal.LogDelete(id)
	return err
}

// maybeCheckpoint evaluates spec §4.7's checkpoint trigger: an op
// counter threshold, an optional wall-clock interval, or the WAL
// growing past its configured size cap.
func (c *Collection) maybeCheckpoint() error {
	c.opsSinceCheckpoint++
	due := false
	if c.opts.WAL.Enabled && c.opts.WAL.CheckpointFrequency > 0 && c.opsSinceCheckpoint >= c.opts.WAL.CheckpointFrequency {
		due = true
	}
	if c.opts.WAL.CheckpointIntervalSecs > 0 && time.Since(c.lastCheckpoint) >= time.Duration(c.opts.WAL.CheckpointIntervalSecs)*time.Second {
		due = true
	}
	if c.opts.WAL.MaxLogSize > 0 {
		if sz, err := c.wal.Size(); err == nil && sz >= c.opts.WAL.MaxLogSize {
			due = true
		}
	}
	if !due {
		return nil
	}
	return c.checkpointLocked()
}

// checkpointLocked implements the resolved ordering from spec §9's
// second Open Question: persist pointer-table + ANN + metadata, then
// emit a WAL Checkpoint record, then atomically write WAL-meta, then
// rotate the WAL. Must be called with the writer lock held.
func (c *Collection) checkpointLocked() error {
	start := time.Now()

	if err := c.table.Save(entrytable.IndexPath(c.dataPath)); err != nil {
		return c.finishCheckpoint(start, 0, err)
	}
	if c.annPath != "" {
		if saver, ok := c.idx.(interface{ Save(string) error }); ok {
			if err := saver.Save(c.annPath); err != nil {
				return c.finishCheckpoint(start, 0, err)
			}
		}
	}

	c.metadata.Name = c.name
	c.metadata.Dimensions = c.dimensions
	c.metadata.VectorCount = c.table.Len()
	if err := saveMetadata(metadataPath(c.dataPath), c.metadata); err != nil {
		return c.finishCheckpoint(start, 0, err)
	}

	seq, err := c.wal.Checkpoint(time.Now().Unix())
	if err != nil {
		return c.finishCheckpoint(start, 0, err)
	}

	if err := wal.SaveMeta(wal.MetaPath(walPath(c.dataPath)), wal.Meta{LastCheckpointSeq: seq}); err != nil {
		return c.finishCheckpoint(start, seq, err)
	}

	if err := c.wal.Rotate(); err != nil {
		return c.finishCheckpoint(start, seq, err)
	}

	c.opsSinceCheckpoint = 0
	c.lastCheckpoint = time.Now()
	return c.finishCheckpoint(start, seq, nil)
}

func (c *Collection) finishCheckpoint(start time.Time, seq uint64, err error) error {
	if c.log != nil {
		c.log.LogCheckpoint(seq, time.Since(start), err)
	}
	c.recordMetric("checkpoint", start, err)
	return err
}

func (c *Collection) recordMetric(operation string, start time.Time, err error) {
	if c.met == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.met.RecordOperation(operation, status, time.Since(start))
}

// Insert implements spec §4.7's insert(document) -> id. doc.Id is
// ignored; a fresh id is always assigned.
func (c *Collection) Insert(doc piramid.Document) (piramid.Id, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	start := time.Now()
	id, err := c.insertLocked(doc)
	c.recordMetric("insert", start, err)
	return id, err
}

func (c *Collection) insertLocked(doc piramid.Document) (piramid.Id, error) {
	if err := c.checkWritable(); err != nil {
		return piramid.Id{}, err
	}
	diskVector, cacheVector := c.effectiveVectors(doc.Vector)
	if err := c.checkDimension(cacheVector); err != nil {
		return piramid.Id{}, err
	}
	if err := c.checkLimits(cacheVector); err != nil {
		return piramid.Id{}, err
	}

	id := piramid.NewId()
	if err := c.logInsert(id, diskVector, doc.Text, doc.Metadata); err != nil {
		return piramid.Id{}, err
	}
	if err := c.mutateInsert(id, diskVector, doc.Text, doc.Metadata, cacheVector); err != nil {
		return piramid.Id{}, err
	}
	if c.dimensions == 0 {
		c.dimensions = len(cacheVector)
	}
	if err := c.table.Save(entrytable.IndexPath(c.dataPath)); err != nil {
		return piramid.Id{}, err
	}
	if err := c.maybeCheckpoint(); err != nil {
		return piramid.Id{}, err
	}
	return id, nil
}

// InsertBatch implements spec §4.7's insert_batch: every document is
// WAL-logged and applied before a single pointer-table save and
// checkpoint check, so the batch is atomic with respect to crash
// recovery even though the in-memory application is sequential.
func (c *Collection) InsertBatch(docs []piramid.Document) ([]piramid.Id, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	start := time.Now()

	ids := make([]piramid.Id, 0, len(docs))
	if err := c.checkWritable(); err != nil {
		c.recordMetric("insert_batch", start, err)
		return nil, err
	}

	// Pre-size the mmap once for the whole batch (spec §4.7: "single WAL
	// pass then single mmap growth sized to the total") instead of
	// letting each mutateInsert below grow/remap it one document at a
	// time.
	totalBytes := c.table.NextOffset()
	for _, doc := range docs {
		size, err := docstore.EncodedSize(doc)
		if err != nil {
			c.recordMetric("insert_batch", start, err)
			return nil, err
		}
		totalBytes += uint64(size)
	}
	if err := c.file.EnsureCapacity(int64(totalBytes)); err != nil {
		c.recordMetric("insert_batch", start, err)
		return nil, err
	}

	for _, doc := range docs {
		diskVector, cacheVector := c.effectiveVectors(doc.Vector)
		if err := c.checkDimension(cacheVector); err != nil {
			c.recordMetric("insert_batch", start, err)
			return ids, err
		}
		if err := c.checkLimits(cacheVector); err != nil {
			c.recordMetric("insert_batch", start, err)
			return ids, err
		}
		id := piramid.NewId()
		if err := c.logInsert(id, diskVector, doc.Text, doc.Metadata); err != nil {
			c.recordMetric("insert_batch", start, err)
			return ids, err
		}
		if err := c.mutateInsert(id, diskVector, doc.Text, doc.Metadata, cacheVector); err != nil {
			c.recordMetric("insert_batch", start, err)
			return ids, err
		}
		if c.dimensions == 0 {
			c.dimensions = len(cacheVector)
		}
		ids = append(ids, id)
	}

	if err := c.table.Save(entrytable.IndexPath(c.dataPath)); err != nil {
		c.recordMetric("insert_batch", start, err)
		return ids, err
	}
	err := c.maybeCheckpoint()
	c.recordMetric("insert_batch", start, err)
	return ids, err
}

// Upsert implements spec §4.7's upsert: a present, known id updates in
// place; anything else (zero id, or an id not currently live) inserts.
func (c *Collection) Upsert(doc piramid.Document) (piramid.Id, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	start := time.Now()
	id, err := c.upsertLocked(doc)
	c.recordMetric("upsert", start, err)
	return id, err
}

func (c *Collection) upsertLocked(doc piramid.Document) (piramid.Id, error) {
	if err := c.checkWritable(); err != nil {
		return piramid.Id{}, err
	}
	if _, exists := c.table.Get(doc.Id); doc.Id == (piramid.Id{}) || !exists {
		return c.insertLocked(doc)
	}

	diskVector, cacheVector := c.effectiveVectors(doc.Vector)
	if err := c.checkDimension(cacheVector); err != nil {
		return piramid.Id{}, err
	}
	if err := c.logUpdate(doc.Id, diskVector, doc.Text, doc.Metadata); err != nil {
		return piramid.Id{}, err
	}
	c.mutateDelete(doc.Id)
	if err := c.mutateInsert(doc.Id, diskVector, doc.Text, doc.Metadata, cacheVector); err != nil {
		return piramid.Id{}, err
	}
	if err := c.table.Save(entrytable.IndexPath(c.dataPath)); err != nil {
		return piramid.Id{}, err
	}
	if err := c.maybeCheckpoint(); err != nil {
		return piramid.Id{}, err
	}
	return doc.Id, nil
}

// Delete implements spec §4.7's delete(id) -> bool.
func (c *Collection) Delete(id piramid.Id) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	start := time.Now()
	ok, err := c.deleteLocked(id)
	c.recordMetric("delete", start, err)
	return ok, err
}

func (c *Collection) deleteLocked(id piramid.Id) (bool, error) {
	if err := c.checkWritable(); err != nil {
		return false, err
	}
	if _, exists := c.table.Get(id); !exists {
		return false, nil
	}
	if err := c.logDelete(id); err != nil {
		return false, err
	}
	c.mutateDelete(id)
	if err := c.table.Save(entrytable.IndexPath(c.dataPath)); err != nil {
		return false, err
	}
	if err := c.maybeCheckpoint(); err != nil {
		return false, err
	}
	return true, nil
}

// DeleteBatch implements spec §4.7's delete_batch(ids) -> usize.
func (c *Collection) DeleteBatch(ids []piramid.Id) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	start := time.Now()

	if err := c.checkWritable(); err != nil {
		c.recordMetric("delete_batch", start, err)
		return 0, err
	}

	count := 0
	for _, id := range ids {
		if _, exists := c.table.Get(id); !exists {
			continue
		}
		if err := c.logDelete(id); err != nil {
			c.recordMetric("delete_batch", start, err)
			return count, err
		}
		c.mutateDelete(id)
		count++
	}

	if err := c.table.Save(entrytable.IndexPath(c.dataPath)); err != nil {
		c.recordMetric("delete_batch", start, err)
		return count, err
	}
	err := c.maybeCheckpoint()
	c.recordMetric("delete_batch", start, err)
	return count, err
}

// UpdateMetadata implements spec §4.7's update_metadata(id, meta): log
// Update, delete+reinsert with the new metadata field.
func (c *Collection) UpdateMetadata(id piramid.Id, md piramid.Metadata) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	start := time.Now()
	err := c.updateLocked(id, nil, md, false)
	c.recordMetric("update_metadata", start, err)
	return err
}

// UpdateVector implements spec §4.7's update_vector(id, vec): log
// Update, delete+reinsert with the new vector field.
func (c *Collection) UpdateVector(id piramid.Id, vector []float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	start := time.Now()
	err := c.updateLocked(id, vector, nil, true)
	c.recordMetric("update_vector", start, err)
	return err
}

func (c *Collection) updateLocked(id piramid.Id, newVector []float32, newMeta piramid.Metadata, replaceVector bool) error {
	if err := c.checkWritable(); err != nil {
		return err
	}
	ptr, exists := c.table.Get(id)
	if !exists {
		return piramid.NewNotFoundError(id)
	}
	doc, err := c.store.Read(ptr)
	if err != nil {
		return err
	}

	diskVector, cacheVector := doc.Vector, doc.Vector
	if replaceVector {
		diskVector, cacheVector = c.effectiveVectors(newVector)
		if err := c.checkDimension(cacheVector); err != nil {
			return err
		}
	}
	md := doc.Metadata
	if newMeta != nil {
		md = newMeta
	}

	if err := c.logUpdate(id, diskVector, doc.Text, md); err != nil {
		return err
	}
	c.mutateDelete(id)
	if err := c.mutateInsert(id, diskVector, doc.Text, md, cacheVector); err != nil {
		return err
	}
	if err := c.table.Save(entrytable.IndexPath(c.dataPath)); err != nil {
		return err
	}
	return c.maybeCheckpoint()
}

// Get implements spec §4.7's get(id) -> document?.
func (c *Collection) Get(id piramid.Id) (piramid.Document, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ptr, ok := c.table.Get(id)
	if !ok {
		return piramid.Document{}, false, nil
	}
	doc, err := c.store.Read(ptr)
	if err != nil {
		return piramid.Document{}, false, err
	}
	return doc, true, nil
}

func (c *Collection) searchParamsLocked(metric piramid.Metric, params SearchParams) search.Params {
	mode := params.Mode
	if mode == piramid.ExecutionAuto {
		mode = c.opts.Execution.Mode
	}
	overfetch := params.Overfetch
	if overfetch <= 0 {
		overfetch = c.opts.Search.FilterOverfetch
	}
	return search.Params{
		Metric:          metric,
		Mode:            mode,
		Filter:          params.Filter,
		FilterOverfetch: overfetch,
		IndexParams:     index.SearchParams{Ef: params.Ef, NumProbes: params.NumProbes},
	}
}

// Search implements spec §4.7's search(query, k, metric, params) -> [Hit].
func (c *Collection) Search(query []float32, k int, metric piramid.Metric, params SearchParams) ([]piramid.Hit, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	start := time.Now()

	if err := c.checkDimension(query); err != nil {
		return nil, err
	}
	sp := c.searchParamsLocked(metric, params)
	hits, err := search.Execute(c.idx, query, k, sp, c.vectorView, c.metadataView, c.hydrate)

	if c.log != nil {
		c.log.LogSearch(k, len(hits), time.Since(start))
	}
	c.recordMetric("search", start, err)
	if err == nil && c.met != nil {
		c.met.RecordSearchResults(len(hits))
	}
	return hits, err
}

// SearchBatch implements spec §4.7's search_batch(queries, k, metric).
func (c *Collection) SearchBatch(queries [][]float32, k int, metric piramid.Metric, params SearchParams) ([][]piramid.Hit, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	start := time.Now()

	for _, q := range queries {
		if err := c.checkDimension(q); err != nil {
			return nil, err
		}
	}
	sp := c.searchParamsLocked(metric, params)
	results, err := search.ExecuteBatch(c.idx, queries, k, sp, c.vectorView, c.metadataView, c.hydrate)
	c.recordMetric("search_batch", start, err)
	return results, err
}

// Checkpoint implements spec §4.7's checkpoint().
func (c *Collection) Checkpoint() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.checkpointLocked()
}

// Compact implements spec §4.7's compact() -> CompactStats: snapshot
// live documents, truncate the data file, re-append all of them packed
// from offset 0, clear and rebuild the pointer table/ANN/caches, then
// checkpoint and rotate the WAL. "Truncate" here is logical: mmapfile
// only grows, so compaction repacks live documents starting at offset
// 0 and leaves any bytes past the new end unused until a future growth
// reclaims them, rather than physically shrinking the file.
func (c *Collection) Compact() (piramid.CompactStats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	start := time.Now()

	if err := c.checkWritable(); err != nil {
		c.recordMetric("compact", start, err)
		return piramid.CompactStats{}, err
	}

	before := c.table.Len()
	beforeSpan := c.table.NextOffset()

	snapshot := c.table.Snapshot()
	docs := make([]piramid.Document, 0, len(snapshot))
	for _, ptr := range snapshot {
		doc, err := c.store.Read(ptr)
		if err != nil {
			c.recordMetric("compact", start, err)
			return piramid.CompactStats{}, err
		}
		docs = append(docs, doc)
	}

	c.table.Clear()
	c.vectors = make(map[piramid.Id][]float32, len(docs))
	var offset uint64
	ids := make([]piramid.Id, 0, len(docs))
	for _, doc := range docs {
		ptr, err := c.store.Append(doc, offset)
		if err != nil {
			c.recordMetric("compact", start, err)
			return piramid.CompactStats{}, err
		}
		c.table.Set(doc.Id, ptr)
		c.vectors[doc.Id] = doc.Vector
		ids = append(ids, doc.Id)
		offset = ptr.End()
	}

	if err := c.rebuildIndex(ids); err != nil {
		c.recordMetric("compact", start, err)
		return piramid.CompactStats{}, err
	}

	after := c.table.Len()
	if err := c.checkpointLocked(); err != nil {
		c.recordMetric("compact", start, err)
		return piramid.CompactStats{}, err
	}

	stats := piramid.CompactStats{
		DocumentsBefore: before,
		DocumentsAfter:  after,
		BytesReclaimed:  int64(beforeSpan) - int64(offset),
	}
	if c.log != nil {
		c.log.LogCompact(fmt.Sprintf("%+v", stats), time.Since(start), nil)
	}
	c.recordMetric("compact", start, nil)
	return stats, nil
}

// FindDuplicates implements spec §4.7's
// find_duplicates(metric, threshold, limit?) -> [(id_a,id_b,score)]:
// for each live id, run an ANN search for its neighbors and collect
// pairs scoring at or above threshold, deduplicated by the unordered
// pair key (min(a,b), max(a,b)), sorted by score descending.
func (c *Collection) FindDuplicates(metric piramid.Metric, threshold float32, limit int) ([]piramid.Pair, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	mode := c.opts.Execution.Mode
	seen := make(map[[2]piramid.Id]struct{})
	var pairs []piramid.Pair

	for id, v := range c.vectors {
		neighbors, err := c.idx.Search(v, defaultDuplicateNeighbors, c.vectorView, index.SearchParams{}, nil, nil)
		if err != nil {
			return nil, err
		}
		for _, nb := range neighbors {
			if nb == id {
				continue
			}
			nv, ok := c.vectors[nb]
			if !ok {
				continue
			}
			score := distance.Score(metric, mode, v, nv)
			if score < threshold {
				continue
			}
			key := pairKey(id, nb)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			pairs = append(pairs, piramid.Pair{A: key[0], B: key[1], Score: score})
		}
	}

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Score > pairs[j].Score })
	if limit > 0 && len(pairs) > limit {
		pairs = pairs[:limit]
	}
	return pairs, nil
}

func pairKey(a, b piramid.Id) [2]piramid.Id {
	if bytes.Compare(a.Bytes(), b.Bytes()) <= 0 {
		return [2]piramid.Id{a, b}
	}
	return [2]piramid.Id{b, a}
}

// Stats implements spec §6's stats().
func (c *Collection) Stats() piramid.CollectionStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	walSize, _ := c.wal.Size()

	stats := piramid.CollectionStats{
		Name:                   c.name,
		VectorCount:            c.table.Len(),
		Dimensions:             c.dimensions,
		IndexKind:              c.kind,
		WALSizeBytes:           walSize,
		SecondsSinceCheckpoint: time.Since(c.lastCheckpoint).Seconds(),
	}

	cacheBytes := int64(len(c.vectors)) * int64(c.dimensions) * 4
	if c.cache.overBudget(cacheBytes) && c.log != nil {
		c.log.Warn("cache budget exceeded").Int64("cache_bytes", cacheBytes).Int64("max_bytes", c.opts.CacheGuard.MaxBytes).Send()
	}
	if c.met != nil {
		c.met.UpdateCollectionStats(c.name, stats.VectorCount, c.kind.String(), stats.WALSizeBytes, stats.SecondsSinceCheckpoint, cacheBytes)
	}
	return stats
}

// Flush persists the mmap region and flushes the WAL's buffered writer
// without performing a full checkpoint.
func (c *Collection) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.file.Sync(); err != nil {
		return err
	}
	return c.wal.Flush()
}

// Close checkpoints the collection and releases its file handles.
func (c *Collection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	if err := c.checkpointLocked(); err != nil {
		return err
	}
	if err := c.wal.Close(); err != nil {
		return err
	}
	if err := c.file.Close(); err != nil {
		return err
	}
	c.closed = true
	return nil
}
