package wal

import (
	"bufio"
	"encoding/json"
	"os"

	"github.com/piramid-db/piramid/pkg/piramid"
)

// Replay reads path and returns every record with seq > minSeq, in file
// order. The header line is validated and skipped. A parse failure on
// any non-header line fails the whole replay with CorruptedDataError —
// a partially-written WAL is only trustworthy up to, not past, its first
// bad line, and the caller should not silently drop a suffix of records.
func Replay(path string, minSeq uint64) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, piramid.NewIOError("open", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, piramid.NewIOError("read header", path, err)
		}
		return nil, nil // empty file: nothing to replay
	}
	var h header
	if err := json.Unmarshal(scanner.Bytes(), &h); err != nil {
		return nil, piramid.NewCorruptedDataError("wal header unparseable", err)
	}
	if h.Version != headerVersion {
		return nil, piramid.NewCorruptedDataError("wal header version mismatch", nil)
	}

	var records []Record
	for scanner.Scan() {
		var r Record
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			return nil, piramid.NewCorruptedDataError("wal record unparseable", err)
		}
		if r.Seq > minSeq {
			records = append(records, r)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, piramid.NewIOError("scan", path, err)
	}
	return records, nil
}
