// Package wal implements the collection's write-ahead log: an
// append-only, line-delimited JSON file used for crash recovery (spec
// §4.3). Every write operation is logged before it takes effect; replay
// after a crash reapplies everything logged since the last checkpoint.
package wal

import (
	"encoding/json"

	"github.com/piramid-db/piramid/pkg/piramid"
)

// Kind tags which operation a Record represents.
type Kind string

const (
	KindInsert     Kind = "insert"
	KindUpdate     Kind = "update"
	KindDelete     Kind = "delete"
	KindCheckpoint Kind = "checkpoint"
)

// headerVersion is written as the first line of a fresh WAL file and
// validated on open.
const headerVersion = 1

type header struct {
	Version int `json:"version"`
}

// Record is one JSON-line WAL entry. Not every field is populated for
// every Kind: Insert/Update carry Vector/Text/Metadata, Delete carries
// only Id, Checkpoint carries only TimestampSecs.
type Record struct {
	Kind          Kind             `json:"kind"`
	Seq           uint64           `json:"seq"`
	Id            piramid.Id       `json:"id"`
	Vector        []float32        `json:"vector,omitempty"`
	Text          []byte           `json:"text,omitempty"`
	Metadata      piramid.Metadata `json:"metadata,omitempty"`
	TimestampSecs int64            `json:"timestamp_secs,omitempty"`
}

func insertRecord(seq uint64, id piramid.Id, vector []float32, text []byte, md piramid.Metadata) Record {
	return Record{Kind: KindInsert, Seq: seq, Id: id, Vector: vector, Text: text, Metadata: md}
}

func updateRecord(seq uint64, id piramid.Id, vector []float32, text []byte, md piramid.Metadata) Record {
	return Record{Kind: KindUpdate, Seq: seq, Id: id, Vector: vector, Text: text, Metadata: md}
}

func deleteRecord(seq uint64, id piramid.Id) Record {
	return Record{Kind: KindDelete, Seq: seq, Id: id}
}

func checkpointRecord(seq uint64, timestampSecs int64) Record {
	return Record{Kind: KindCheckpoint, Seq: seq, TimestampSecs: timestampSecs}
}

func (r Record) encode() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, piramid.NewSerializationError("wal record", err)
	}
	return append(data, '\n'), nil
}
