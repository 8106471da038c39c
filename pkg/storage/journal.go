package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/fedecaccia/mongodb/pkg/domain"
)

// Durability represents how far a journal write is pushed before returning
type Durability int

const (
	DurabilityOS   Durability = iota // written to the OS page cache (default)
	DurabilityFull                   // fsync after every entry
)

// JournalOp is the kind of write recorded in a journal entry
type JournalOp string

const (
	JournalInsert         JournalOp = "insert"
	JournalDelete         JournalOp = "delete"
	JournalCreateIndex    JournalOp = "create_index"
	JournalDropIndex      JournalOp = "drop_index"
	JournalDropCollection JournalOp = "drop_collection"
	JournalDropDatabase   JournalOp = "drop_database"
)

// JournalEntry is one line of the journal
type JournalEntry struct {
	LSN        int64              `json:"lsn"`
	Timestamp  int64              `json:"timestamp"`
	Op         JournalOp          `json:"op"`
	Database   string             `json:"db"`
	Collection string             `json:"collection,omitempty"`
	Documents  []domain.Document  `json:"documents,omitempty"`
	Index      *domain.IndexModel `json:"index,omitempty"`
	IndexName  string             `json:"index_name,omitempty"`
	Checksum   uint64             `json:"checksum"`
}

// Journal is an append-only log of writes, one JSON entry per line
type Journal struct {
	mu         sync.Mutex
	file       *os.File
	durability Durability
	lsn        int64
}

// OpenJournal opens path for appending, creating it if needed
func OpenJournal(path string, durability Durability) (*Journal, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	return &Journal{file: file, durability: durability}, nil
}

// Append writes entry, assigning its sequence number and checksum
func (j *Journal) Append(entry JournalEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.lsn++
	entry.LSN = j.lsn
	entry.Timestamp = time.Now().UnixNano()
	sum, err := checksum(entry)
	if err != nil {
		return err
	}
	entry.Checksum = sum

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal journal entry: %w", err)
	}
	if _, err := j.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write journal entry: %w", err)
	}
	if j.durability == DurabilityFull {
		return j.file.Sync()
	}
	return nil
}

// LastLSN returns the sequence number of the last appended entry
func (j *Journal) LastLSN() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lsn
}

// Truncate empties the journal once its entries are covered by a snapshot.
// Sequence numbers keep increasing across truncations.
func (j *Journal) Truncate() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.file.Truncate(0); err != nil {
		return fmt.Errorf("failed to truncate journal: %w", err)
	}
	return j.file.Sync()
}

// Close closes the journal file
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.file.Close()
}

// checksum hashes the entry encoded with a zero checksum field
func checksum(entry JournalEntry) (uint64, error) {
	entry.Checksum = 0
	data, err := json.Marshal(entry)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal journal entry: %w", err)
	}
	return xxhash.Sum64(data), nil
}

// ReadJournal decodes every entry of a journal. A torn final line, left by
// a crash mid-write, is ignored; corruption anywhere else is an error.
func ReadJournal(r io.Reader) ([]JournalEntry, error) {
	var (
		entries []JournalEntry
		pending error
	)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 64*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if pending != nil {
			return nil, pending
		}
		var entry JournalEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			pending = fmt.Errorf("failed to decode journal entry after LSN %d: %w", lastLSN(entries), err)
			continue
		}
		sum, err := checksum(entry)
		if err != nil {
			return nil, err
		}
		if sum != entry.Checksum {
			pending = fmt.Errorf("checksum verification failed for LSN %d", entry.LSN)
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading journal: %w", err)
	}
	return entries, nil
}

func lastLSN(entries []JournalEntry) int64 {
	if len(entries) == 0 {
		return 0
	}
	return entries[len(entries)-1].LSN
}

// journalWrite records entry when journaling is enabled
func (se *StorageEngine) journalWrite(entry JournalEntry) error {
	if se.journal == nil {
		return nil
	}
	return se.journal.Append(entry)
}

// replay applies journal entries to the engine. The journal must not be
// open yet, so replayed writes are not journaled again.
func (se *StorageEngine) replay(entries []JournalEntry) error {
	ctx := context.Background()
	for _, e := range entries {
		var err error
		switch e.Op {
		case JournalInsert:
			_, err = se.InsertMany(ctx, e.Database, e.Collection, e.Documents, true)
		case JournalDelete:
			ids := make([]domain.Value, 0, len(e.Documents))
			for _, d := range e.Documents {
				if id, ok := d.ID(); ok {
					ids = append(ids, id)
				}
			}
			filter := domain.NewDocument(domain.Element{
				Key:   domain.IDField,
				Value: domain.Doc(domain.NewDocument(domain.Element{Key: "$in", Value: domain.Array(ids...)})),
			})
			_, err = se.DeleteMany(ctx, e.Database, e.Collection, filter)
		case JournalCreateIndex:
			if e.Index == nil {
				err = errors.New("create_index entry without index")
				break
			}
			_, err = se.CreateIndex(ctx, e.Database, e.Collection, *e.Index)
		case JournalDropIndex:
			err = se.DropIndex(ctx, e.Database, e.Collection, e.IndexName)
		case JournalDropCollection:
			err = se.DropCollection(ctx, e.Database, e.Collection)
		case JournalDropDatabase:
			err = se.DropDatabase(ctx, e.Database)
		default:
			err = fmt.Errorf("unknown journal op %q", e.Op)
		}
		if err != nil {
			return fmt.Errorf("replaying LSN %d (%s): %w", e.LSN, e.Op, err)
		}
	}
	return nil
}
