package storage

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/fedecaccia/mongodb/pkg/identity"
)

type StorageOption func(*StorageEngine)

// WithLogger sets the engine logger (default: disabled)
func WithLogger(logger zerolog.Logger) StorageOption {
	return func(engine *StorageEngine) {
		engine.logger = logger
	}
}

// WithIDGenerator shares an identity generator with the engine
func WithIDGenerator(gen *identity.Generator) StorageOption {
	return func(engine *StorageEngine) {
		engine.ids = gen
	}
}

// WithDataFile sets the snapshot file loaded by Recover and written by
// background saves and Close.
func WithDataFile(path string) StorageOption {
	return func(engine *StorageEngine) {
		engine.dataFile = path
	}
}

// WithBackgroundSave snapshots the data file every interval
func WithBackgroundSave(interval time.Duration) StorageOption {
	return func(engine *StorageEngine) {
		engine.backgroundSave = true
		engine.saveInterval = interval
	}
}

// WithJournal records every write in an append-only journal at path. The
// journal is replayed by Recover and truncated after each snapshot.
func WithJournal(path string) StorageOption {
	return func(engine *StorageEngine) {
		engine.journalPath = path
	}
}

// WithDurability sets how hard journal writes are pushed to disk
func WithDurability(level Durability) StorageOption {
	return func(engine *StorageEngine) {
		engine.durability = level
	}
}

// WithoutCompression writes snapshots without the lz4 frame
func WithoutCompression() StorageOption {
	return func(engine *StorageEngine) {
		engine.uncompressed = true
	}
}
