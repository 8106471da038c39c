package storage

import (
	"context"
	"sort"
)

// ListDatabaseNames returns the names of databases holding at least one
// collection, sorted.
func (se *StorageEngine) ListDatabaseNames(ctx context.Context) ([]string, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	se.mu.RLock()
	defer se.mu.RUnlock()

	names := make([]string, 0, len(se.databases))
	for name, db := range se.databases {
		if len(db.collections) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// ListCollectionNames returns the collections of a database, sorted. An
// unknown database has no collections.
func (se *StorageEngine) ListCollectionNames(ctx context.Context, dbName string) ([]string, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	se.mu.RLock()
	defer se.mu.RUnlock()

	db, ok := se.databases[dbName]
	if !ok {
		return []string{}, nil
	}
	names := make([]string, 0, len(db.collections))
	for name := range db.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// DropCollection removes a collection with its documents and indexes.
// Dropping a missing collection is not an error.
func (se *StorageEngine) DropCollection(ctx context.Context, dbName, collName string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	se.mu.Lock()
	defer se.mu.Unlock()

	db, ok := se.databases[dbName]
	if !ok {
		return nil
	}
	if _, ok := db.collections[collName]; !ok {
		return nil
	}
	if err := se.journalWrite(JournalEntry{Op: JournalDropCollection, Database: dbName, Collection: collName}); err != nil {
		return err
	}
	delete(db.collections, collName)
	if len(db.collections) == 0 {
		delete(se.databases, dbName)
	}
	se.logger.Debug().Str("db", dbName).Str("collection", collName).Msg("collection dropped")
	return nil
}

// DropDatabase removes a database and all its collections. Dropping a
// missing database is not an error.
func (se *StorageEngine) DropDatabase(ctx context.Context, dbName string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	se.mu.Lock()
	defer se.mu.Unlock()

	if _, ok := se.databases[dbName]; !ok {
		return nil
	}
	if err := se.journalWrite(JournalEntry{Op: JournalDropDatabase, Database: dbName}); err != nil {
		return err
	}
	delete(se.databases, dbName)
	se.logger.Debug().Str("db", dbName).Msg("database dropped")
	return nil
}

// Stats summarizes the engine contents
type Stats struct {
	Databases   int   `json:"databases"`
	Collections int   `json:"collections"`
	Documents   int64 `json:"documents"`
	Indexes     int   `json:"indexes"`
}

// GetStats counts databases, collections, documents and indexes
func (se *StorageEngine) GetStats() Stats {
	se.mu.RLock()
	defer se.mu.RUnlock()

	var s Stats
	s.Databases = len(se.databases)
	for _, db := range se.databases {
		s.Collections += len(db.collections)
		for _, c := range db.collections {
			c.mu.RLock()
			s.Documents += int64(len(c.docs))
			s.Indexes += len(c.indexes.List())
			c.mu.RUnlock()
		}
	}
	return s
}
