package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pierrec/lz4/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/fedecaccia/mongodb/pkg/domain"
)

// exportData captures the engine contents. Callers hold se.mu.
func (se *StorageEngine) exportData() (*StorageData, error) {
	data := NewStorageData()
	for dbName, db := range se.databases {
		colls := make(map[string]*CollectionData, len(db.collections))
		for collName, c := range db.collections {
			c.mu.RLock()
			cd := &CollectionData{Documents: make([][]byte, 0, len(c.docs))}
			for _, e := range c.docs {
				raw, err := json.Marshal(e.doc)
				if err != nil {
					c.mu.RUnlock()
					return nil, fmt.Errorf("failed to encode document in %s.%s: %w", dbName, collName, err)
				}
				cd.Documents = append(cd.Documents, raw)
			}
			for _, m := range c.indexes.List() {
				if m.Name != domain.IDIndexName {
					cd.Indexes = append(cd.Indexes, m)
				}
			}
			c.mu.RUnlock()
			colls[collName] = cd
		}
		data.Databases[dbName] = colls
	}
	if se.journal != nil {
		data.JournalLSN = se.journal.LastLSN()
	}
	return data, nil
}

// SaveSnapshot writes the engine contents to w: a header followed by the
// msgpack-encoded StorageData, inside an lz4 frame unless compression is
// disabled.
func (se *StorageEngine) SaveSnapshot(w io.Writer) error {
	se.mu.RLock()
	defer se.mu.RUnlock()
	return se.writeSnapshot(w)
}

func (se *StorageEngine) writeSnapshot(w io.Writer) error {
	data, err := se.exportData()
	if err != nil {
		return err
	}
	var flags uint8
	if !se.uncompressed {
		flags |= FlagLZ4
	}
	if err := WriteHeader(w, flags); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if se.uncompressed {
		if err := msgpack.NewEncoder(w).Encode(data); err != nil {
			return fmt.Errorf("failed to encode MessagePack: %w", err)
		}
		return nil
	}
	zw := lz4.NewWriter(w)
	if err := msgpack.NewEncoder(zw).Encode(data); err != nil {
		return fmt.Errorf("failed to encode MessagePack: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to compress data: %w", err)
	}
	return nil
}

// LoadSnapshot replaces the engine contents with the snapshot read from r
func (se *StorageEngine) LoadSnapshot(r io.Reader) error {
	header, err := ReadHeader(r)
	if err != nil {
		return fmt.Errorf("invalid file header: %w", err)
	}
	body := r
	if header.Compressed() {
		body = lz4.NewReader(r)
	}
	var data StorageData
	if err := msgpack.NewDecoder(body).Decode(&data); err != nil {
		return fmt.Errorf("failed to decode MessagePack: %w", err)
	}

	databases := make(map[string]*database, len(data.Databases))
	for dbName, colls := range data.Databases {
		db := &database{name: dbName, collections: make(map[string]*collection, len(colls))}
		for collName, cd := range colls {
			c := newCollection(collName)
			for i, raw := range cd.Documents {
				var doc domain.Document
				if err := json.Unmarshal(raw, &doc); err != nil {
					return fmt.Errorf("failed to decode document %d in %s.%s: %w", i, dbName, collName, err)
				}
				if err := c.insert(doc); err != nil {
					return fmt.Errorf("failed to restore document %d in %s.%s: %w", i, dbName, collName, err)
				}
			}
			for _, m := range cd.Indexes {
				if _, err := c.indexes.Build(m, c.documents()); err != nil {
					return fmt.Errorf("failed to rebuild index %s on %s.%s: %w", m.Name, dbName, collName, err)
				}
			}
			db.collections[collName] = c
		}
		if len(db.collections) > 0 {
			databases[dbName] = db
		}
	}

	se.mu.Lock()
	se.databases = databases
	se.snapshotLSN = data.JournalLSN
	se.mu.Unlock()
	return nil
}

// SaveToFile snapshots the engine into filename. The file is written next
// to its destination and renamed into place. When filename is the
// configured data file, the journal is truncated afterwards.
func (se *StorageEngine) SaveToFile(filename string) error {
	// exclusive: no write may land between the snapshot and the truncation
	se.mu.Lock()
	defer se.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(filename), filepath.Base(filename)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := se.writeSnapshot(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), filename); err != nil {
		return fmt.Errorf("failed to move snapshot into place: %w", err)
	}

	if se.journal != nil && filename == se.dataFile {
		if err := se.journal.Truncate(); err != nil {
			return err
		}
	}
	se.logger.Info().Str("file", filename).Msg("snapshot saved")
	return nil
}

// LoadFromFile loads a snapshot file. A missing file leaves the engine empty.
func (se *StorageEngine) LoadFromFile(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()
	return se.LoadSnapshot(file)
}

// Recover restores persisted state: the data file snapshot first, then the
// journal entries written since. Afterwards the journal is open for new
// writes.
func (se *StorageEngine) Recover() error {
	if se.dataFile != "" {
		if err := se.LoadFromFile(se.dataFile); err != nil {
			return fmt.Errorf("failed to load %s: %w", se.dataFile, err)
		}
	}
	if se.journalPath == "" {
		return nil
	}

	lsn := se.snapshotLSN
	replayed := 0
	file, err := os.Open(se.journalPath)
	switch {
	case err == nil:
		entries, err := ReadJournal(file)
		file.Close()
		if err != nil {
			return err
		}
		// entries up to the snapshot LSN survived a crash between
		// snapshot and truncation and are already applied
		pending := entries[:0]
		for _, e := range entries {
			if e.LSN > se.snapshotLSN {
				pending = append(pending, e)
			}
		}
		if err := se.replay(pending); err != nil {
			return err
		}
		replayed = len(pending)
		lsn = max(lsn, lastLSN(entries))
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("failed to open journal: %w", err)
	}

	journal, err := OpenJournal(se.journalPath, se.durability)
	if err != nil {
		return err
	}
	journal.lsn = lsn
	se.journal = journal
	se.logger.Info().Str("journal", se.journalPath).Int("replayed", replayed).Msg("recovery complete")
	return nil
}
