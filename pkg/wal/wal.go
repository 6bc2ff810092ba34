package wal

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/piramid-db/piramid/pkg/piramid"
)

// WAL is an append-only, line-delimited JSON log. Writers serialize
// through mu, which also guards the sequence counter (NextSeq takes it
// too).
type WAL struct {
	path string

	mu          sync.Mutex
	f           *os.File
	w           *bufio.Writer
	syncOnWrite bool

	seq uint64 // last assigned seq; next Log call uses seq+1
}

// Open creates path with a fresh `{"version":1}` header if it doesn't
// exist, or opens it for append after validating the header. syncOnWrite
// controls whether Log fsyncs after every flush (spec §4.3's
// "sync-on-write" durability mode).
func Open(path string, syncOnWrite bool) (*WAL, error) {
	_, statErr := os.Stat(path)
	if os.IsNotExist(statErr) {
		return create(path, syncOnWrite)
	}
	if statErr != nil {
		return nil, piramid.NewIOError("stat", path, statErr)
	}
	return openExisting(path, syncOnWrite)
}

func create(path string, syncOnWrite bool) (*WAL, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, piramid.NewIOError("create", path, err)
	}
	w := &WAL{path: path, f: f, w: bufio.NewWriter(f), syncOnWrite: syncOnWrite}
	if err := w.writeHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

func openExisting(path string, syncOnWrite bool) (*WAL, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, piramid.NewIOError("open", path, err)
	}

	if err := validateHeader(f); err != nil {
		f.Close()
		return nil, err
	}

	maxSeq, err := scanMaxSeq(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	// A rotated WAL holds only its header, so the counter resumes from the
	// WAL-meta sidecar's last checkpoint seq when that is higher.
	if meta, err := LoadMeta(MetaPath(path)); err == nil && meta.LastCheckpointSeq > maxSeq {
		maxSeq = meta.LastCheckpointSeq
	}

	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return nil, piramid.NewIOError("seek", path, err)
	}

	return &WAL{path: path, f: f, w: bufio.NewWriter(f), syncOnWrite: syncOnWrite, seq: maxSeq}, nil
}

func validateHeader(f *os.File) error {
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return piramid.NewIOError("read header", f.Name(), err)
		}
		return piramid.NewCorruptedDataError("wal header missing", nil)
	}
	var h header
	if err := json.Unmarshal(scanner.Bytes(), &h); err != nil {
		return piramid.NewCorruptedDataError("wal header unparseable", err)
	}
	if h.Version != headerVersion {
		return piramid.NewCorruptedDataError("wal header version mismatch", nil)
	}
	return nil
}

func scanMaxSeq(f *os.File) (uint64, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, piramid.NewIOError("seek", f.Name(), err)
	}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	scanner.Scan() // skip header, already validated

	var max uint64
	for scanner.Scan() {
		var r Record
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			return 0, piramid.NewCorruptedDataError("wal record unparseable", err)
		}
		if r.Seq > max {
			max = r.Seq
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, piramid.NewIOError("scan", f.Name(), err)
	}
	return max, nil
}

func (w *WAL) writeHeader() error {
	data, err := json.Marshal(header{Version: headerVersion})
	if err != nil {
		return piramid.NewSerializationError("wal header", err)
	}
	data = append(data, '\n')
	if _, err := w.w.Write(data); err != nil {
		return piramid.NewIOError("write header", w.path, err)
	}
	return w.flushLocked()
}

// NextSeq returns the seq the next Log call will assign, without
// assigning it.
func (w *WAL) NextSeq() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.seq + 1
}

// logRecord assigns the next seq to build(seq) and writes it, all under
// mu so concurrent callers never observe or assign a duplicate seq.
func (w *WAL) logRecord(build func(seq uint64) Record) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	seq := w.seq + 1
	r := build(seq)

	data, err := r.encode()
	if err != nil {
		return 0, err
	}
	if _, err := w.w.Write(data); err != nil {
		return 0, piramid.NewIOError("write record", w.path, err)
	}
	if err := w.flushLocked(); err != nil {
		return 0, err
	}
	w.seq = seq
	return seq, nil
}

// LogInsert appends an Insert record and returns its assigned seq.
func (w *WAL) LogInsert(id piramid.Id, vector []float32, text []byte, md piramid.Metadata) (uint64, error) {
	return w.logRecord(func(seq uint64) Record { return insertRecord(seq, id, vector, text, md) })
}

// LogUpdate appends an Update record and returns its assigned seq.
func (w *WAL) LogUpdate(id piramid.Id, vector []float32, text []byte, md piramid.Metadata) (uint64, error) {
	return w.logRecord(func(seq uint64) Record { return updateRecord(seq, id, vector, text, md) })
}

// LogDelete appends a Delete record and returns its assigned seq.
func (w *WAL) LogDelete(id piramid.Id) (uint64, error) {
	return w.logRecord(func(seq uint64) Record { return deleteRecord(seq, id) })
}

// Checkpoint appends a Checkpoint record and returns its assigned seq.
func (w *WAL) Checkpoint(timestampSecs int64) (uint64, error) {
	return w.logRecord(func(seq uint64) Record { return checkpointRecord(seq, timestampSecs) })
}

func (w *WAL) flushLocked() error {
	if err := w.w.Flush(); err != nil {
		return piramid.NewIOError("flush", w.path, err)
	}
	if w.syncOnWrite {
		if err := w.f.Sync(); err != nil {
			return piramid.NewIOError("fsync", w.path, err)
		}
	}
	return nil
}

// Flush flushes the buffered writer and, if configured, fsyncs the file.
func (w *WAL) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked()
}

// Size returns the current on-disk size of the WAL file.
func (w *WAL) Size() (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	info, err := w.f.Stat()
	if err != nil {
		return 0, piramid.NewIOError("stat", w.path, err)
	}
	return info.Size(), nil
}

// Rotate closes, truncates the file to empty, reopens it, and rewrites
// the header. Called after a checkpoint's seq has been durably recorded
// in the WAL-meta sidecar.
func (w *WAL) Rotate() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.f.Close(); err != nil {
		return piramid.NewIOError("close", w.path, err)
	}
	f, err := os.OpenFile(w.path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return piramid.NewIOError("rotate", w.path, err)
	}
	w.f = f
	w.w = bufio.NewWriter(f)
	return w.writeHeader()
}

// Close flushes and closes the underlying file.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.flushLocked(); err != nil {
		w.f.Close()
		return err
	}
	if err := w.f.Close(); err != nil {
		return piramid.NewIOError("close", w.path, err)
	}
	return nil
}
