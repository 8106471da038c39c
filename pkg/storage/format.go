package storage

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/fedecaccia/mongodb/pkg/domain"
)

const (
	MagicBytes    = "DOCS"
	FormatVersion = 1
	FileExtension = ".docs"
)

// FlagLZ4 marks a snapshot whose body is an lz4 frame
const FlagLZ4 uint8 = 1 << 0

// FileHeader opens every snapshot file
type FileHeader struct {
	Magic    [4]byte
	Version  uint8
	Flags    uint8
	Reserved [2]byte
}

// Compressed reports whether the body following the header is lz4 framed
func (h FileHeader) Compressed() bool {
	return h.Flags&FlagLZ4 != 0
}

// WriteHeader writes a snapshot header carrying flags
func WriteHeader(w io.Writer, flags uint8) error {
	var header FileHeader
	copy(header.Magic[:], MagicBytes)
	header.Version = FormatVersion
	header.Flags = flags
	return binary.Write(w, binary.LittleEndian, header)
}

// ReadHeader reads and validates the file header
func ReadHeader(r io.Reader) (*FileHeader, error) {
	var header FileHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if string(header.Magic[:]) != MagicBytes {
		return nil, fmt.Errorf("invalid file format: expected %s, got %q", MagicBytes, header.Magic[:])
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported file version: %d", header.Version)
	}
	if header.Flags&^FlagLZ4 != 0 {
		return nil, fmt.Errorf("unsupported file flags: %#x", header.Flags)
	}
	return &header, nil
}

// StorageData is the msgpack body of a snapshot: database name ->
// collection name -> contents.
type StorageData struct {
	Databases map[string]map[string]*CollectionData `msgpack:"databases"`
	// JournalLSN is the last journal entry reflected in the snapshot
	JournalLSN int64 `msgpack:"journal_lsn,omitempty"`
}

// CollectionData holds one collection. Documents are stored as extended
// JSON so that field order and value kinds survive the round trip.
type CollectionData struct {
	Documents [][]byte            `msgpack:"documents"`
	Indexes   []domain.IndexModel `msgpack:"indexes,omitempty"`
}

// NewStorageData returns an empty snapshot body
func NewStorageData() *StorageData {
	return &StorageData{
		Databases: make(map[string]map[string]*CollectionData),
	}
}
