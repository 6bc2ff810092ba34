// Package docstore serializes documents to a compact, length-prefixed
// binary form and places/reads them within a collection's mmap data file
// (spec §4.4).
package docstore

import (
	"encoding/binary"
	"encoding/json"
	"math"

	"github.com/piramid-db/piramid/pkg/entrytable"
	"github.com/piramid-db/piramid/pkg/metadata"
	"github.com/piramid-db/piramid/pkg/mmapfile"
	"github.com/piramid-db/piramid/pkg/piramid"
)

// Store places documents into an mmap.File and reads them back by
// EntryPointer. It does not itself own an entry-pointer table; the
// caller (Collection) decides what a new pointer means.
type Store struct {
	file *mmapfile.File
}

// New wraps file for document (de)serialization.
func New(file *mmapfile.File) *Store {
	return &Store{file: file}
}

// Append serializes doc and writes it at offset, growing the mmap first
// if needed. The caller supplies offset (spec §4.4: "max over existing
// (offset+length), 0 if empty") since that's a property of the
// entry-pointer table, not of the document store itself.
func (s *Store) Append(doc piramid.Document, offset uint64) (entrytable.EntryPointer, error) {
	data, err := encode(doc)
	if err != nil {
		return entrytable.EntryPointer{}, err
	}
	end := offset + uint64(len(data))
	if err := s.file.EnsureCapacity(int64(end)); err != nil {
		return entrytable.EntryPointer{}, err
	}
	if err := s.file.WriteAt(int64(offset), data); err != nil {
		return entrytable.EntryPointer{}, err
	}
	return entrytable.EntryPointer{Offset: offset, Length: uint32(len(data))}, nil
}

// Read deserializes the document stored in the window described by ptr.
func (s *Store) Read(ptr entrytable.EntryPointer) (piramid.Document, error) {
	data, err := s.file.ReadAt(int64(ptr.Offset), int(ptr.Length))
	if err != nil {
		return piramid.Document{}, err
	}
	return decode(data)
}

// EncodedSize returns the exact byte length Append would write for doc,
// without writing it. Callers inserting a batch use this to pre-size
// the mmap once for the whole batch instead of growing it geometrically
// document-by-document inside the loop.
func EncodedSize(doc piramid.Document) (int, error) {
	metaBytes, err := json.Marshal(doc.Metadata)
	if err != nil {
		return 0, piramid.NewSerializationError("document metadata", err)
	}
	return encodedSize(doc, len(metaBytes)), nil
}

func encodedSize(doc piramid.Document, metaLen int) int {
	return 16 + 4 + len(doc.Vector)*4 + 4 + len(doc.Text) + 4 + metaLen
}

// Layout: [16B id][4B vecLen][vecLen*4B vector f32 LE][4B textLen][textLen
// text][4B metaLen][metaLen json-encoded metadata].
func encode(doc piramid.Document) ([]byte, error) {
	metaBytes, err := json.Marshal(doc.Metadata)
	if err != nil {
		return nil, piramid.NewSerializationError("document metadata", err)
	}

	size := encodedSize(doc, len(metaBytes))
	buf := make([]byte, size)
	off := 0

	copy(buf[off:off+16], doc.Id.Bytes())
	off += 16

	binary.LittleEndian.PutUint32(buf[off:], uint32(len(doc.Vector)))
	off += 4
	for _, v := range doc.Vector {
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(v))
		off += 4
	}

	binary.LittleEndian.PutUint32(buf[off:], uint32(len(doc.Text)))
	off += 4
	off += copy(buf[off:], doc.Text)

	binary.LittleEndian.PutUint32(buf[off:], uint32(len(metaBytes)))
	off += 4
	off += copy(buf[off:], metaBytes)

	return buf, nil
}

func decode(data []byte) (piramid.Document, error) {
	const corrupt = "document window truncated"

	if len(data) < 16+4 {
		return piramid.Document{}, piramid.NewCorruptedDataError(corrupt, nil)
	}
	id, err := piramid.IdFromBytes(data[:16])
	if err != nil {
		return piramid.Document{}, piramid.NewCorruptedDataError("document id unparseable", err)
	}
	off := 16

	vecLen := int(binary.LittleEndian.Uint32(data[off:]))
	off += 4
	if vecLen < 0 || off+vecLen*4 > len(data) {
		return piramid.Document{}, piramid.NewCorruptedDataError(corrupt, nil)
	}
	vector := make([]float32, vecLen)
	for i := 0; i < vecLen; i++ {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
		off += 4
	}

	if off+4 > len(data) {
		return piramid.Document{}, piramid.NewCorruptedDataError(corrupt, nil)
	}
	textLen := int(binary.LittleEndian.Uint32(data[off:]))
	off += 4
	if textLen < 0 || off+textLen > len(data) {
		return piramid.Document{}, piramid.NewCorruptedDataError(corrupt, nil)
	}
	text := make([]byte, textLen)
	copy(text, data[off:off+textLen])
	off += textLen

	if off+4 > len(data) {
		return piramid.Document{}, piramid.NewCorruptedDataError(corrupt, nil)
	}
	metaLen := int(binary.LittleEndian.Uint32(data[off:]))
	off += 4
	if metaLen < 0 || off+metaLen > len(data) {
		return piramid.Document{}, piramid.NewCorruptedDataError(corrupt, nil)
	}
	var md metadata.Map
	if metaLen > 0 {
		if err := json.Unmarshal(data[off:off+metaLen], &md); err != nil {
			return piramid.Document{}, piramid.NewCorruptedDataError("document metadata unparseable", err)
		}
	}

	return piramid.Document{Id: id, Vector: vector, Text: text, Metadata: piramid.Metadata(md)}, nil
}
