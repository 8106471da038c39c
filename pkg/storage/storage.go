package storage

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fedecaccia/mongodb/pkg/domain"
	"github.com/fedecaccia/mongodb/pkg/identity"
)

var _ domain.Store = (*StorageEngine)(nil)

// CollectionLock provides per-collection concurrency control
type CollectionLock struct {
	mu sync.RWMutex
}

// database is a named set of collections
type database struct {
	name        string
	collections map[string]*collection
}

// StorageEngine is an in-memory document store. Databases and collections
// are created on first write. Every collection operation holds the engine
// lock for reading plus the collection's own lock, so writes to one
// collection are serialized while different collections proceed in
// parallel. Dropping and snapshotting take the engine lock exclusively.
type StorageEngine struct {
	mu        sync.RWMutex
	databases map[string]*database

	ids    *identity.Generator
	logger zerolog.Logger

	// Persistence
	dataFile       string
	journalPath    string
	durability     Durability
	journal        *Journal
	snapshotLSN    int64
	uncompressed   bool
	backgroundSave bool
	saveInterval   time.Duration

	// Background workers
	backgroundWg sync.WaitGroup
	stopChan     chan struct{}
	stopOnce     sync.Once
}

// NewStorageEngine creates an empty storage engine. Call Recover to load
// persisted state when a data file or journal is configured.
func NewStorageEngine(options ...StorageOption) *StorageEngine {
	engine := &StorageEngine{
		databases:    make(map[string]*database),
		logger:       zerolog.Nop(),
		durability:   DurabilityOS,
		saveInterval: 5 * time.Minute,
		stopChan:     make(chan struct{}),
	}

	for _, option := range options {
		option(engine)
	}

	if engine.ids == nil {
		engine.ids = identity.New()
	}

	return engine
}

// lookupCollection returns the named collection or nil. Callers hold se.mu.
func (se *StorageEngine) lookupCollection(dbName, collName string) *collection {
	db, ok := se.databases[dbName]
	if !ok {
		return nil
	}
	return db.collections[collName]
}

// acquireCollection returns the named collection, creating it and its
// database if needed. It returns with se.mu read-locked.
func (se *StorageEngine) acquireCollection(dbName, collName string) *collection {
	for {
		se.mu.RLock()
		if c := se.lookupCollection(dbName, collName); c != nil {
			return c
		}
		se.mu.RUnlock()

		se.mu.Lock()
		// Double-check in case another goroutine created it
		if se.lookupCollection(dbName, collName) == nil {
			db, ok := se.databases[dbName]
			if !ok {
				db = &database{name: dbName, collections: make(map[string]*collection)}
				se.databases[dbName] = db
			}
			db.collections[collName] = newCollection(collName)
			se.logger.Debug().Str("db", dbName).Str("collection", collName).Msg("collection created")
		}
		se.mu.Unlock()
	}
}

// withCollectionReadLock runs fn with a read lock on the collection. fn
// receives nil when the collection does not exist.
func (se *StorageEngine) withCollectionReadLock(dbName, collName string, fn func(*collection) error) error {
	se.mu.RLock()
	defer se.mu.RUnlock()
	c := se.lookupCollection(dbName, collName)
	if c == nil {
		return fn(nil)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return fn(c)
}

// withCollectionWriteLock runs fn with a write lock on the collection,
// creating it if it does not exist.
func (se *StorageEngine) withCollectionWriteLock(dbName, collName string, fn func(*collection) error) error {
	c := se.acquireCollection(dbName, collName)
	defer se.mu.RUnlock()
	c.mu.Lock()
	defer c.mu.Unlock()
	return fn(c)
}

// withExistingCollectionWriteLock is withCollectionWriteLock for operations
// that must not create the collection. fn receives nil when it is absent.
func (se *StorageEngine) withExistingCollectionWriteLock(dbName, collName string, fn func(*collection) error) error {
	se.mu.RLock()
	defer se.mu.RUnlock()
	c := se.lookupCollection(dbName, collName)
	if c == nil {
		return fn(nil)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return fn(c)
}

// GenerateID returns a fresh identity from the engine's generator
func (se *StorageEngine) GenerateID() domain.ObjectID {
	return se.ids.Next()
}
