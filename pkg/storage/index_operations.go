package storage

import (
	"context"
	"fmt"

	"github.com/fedecaccia/mongodb/pkg/domain"
)

// CreateIndex builds an index over the collection, creating the collection
// if needed. When model is unique and existing documents already collide,
// it fails with domain.ErrIndexConflict and no index is created.
func (se *StorageEngine) CreateIndex(ctx context.Context, dbName, collName string, model domain.IndexModel) (string, error) {
	if err := checkContext(ctx); err != nil {
		return "", err
	}
	if err := validateNamespace(dbName, collName); err != nil {
		return "", err
	}
	model, err := model.Normalize()
	if err != nil {
		return "", err
	}

	var name string
	err = se.withCollectionWriteLock(dbName, collName, func(c *collection) error {
		before := len(c.indexes.List())
		name, err = c.indexes.Build(model, c.documents())
		if err != nil {
			return err
		}
		if len(c.indexes.List()) == before {
			// identical index already present
			return nil
		}
		if err := se.journalWrite(JournalEntry{
			Op:         JournalCreateIndex,
			Database:   dbName,
			Collection: collName,
			Index:      &model,
		}); err != nil {
			_ = c.indexes.Drop(name)
			return err
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	se.logger.Debug().Str("db", dbName).Str("collection", collName).Str("index", name).Msg("index ready")
	return name, nil
}

// ListIndexes returns the collection's index models sorted by name
func (se *StorageEngine) ListIndexes(ctx context.Context, dbName, collName string) ([]domain.IndexModel, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	var models []domain.IndexModel
	err := se.withCollectionReadLock(dbName, collName, func(c *collection) error {
		if c == nil {
			return fmt.Errorf("%w: collection %s.%s", domain.ErrNotFound, dbName, collName)
		}
		models = c.indexes.List()
		return nil
	})
	return models, err
}

// DropIndex removes a secondary index by name
func (se *StorageEngine) DropIndex(ctx context.Context, dbName, collName, name string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	return se.withExistingCollectionWriteLock(dbName, collName, func(c *collection) error {
		if c == nil {
			return fmt.Errorf("%w: collection %s.%s", domain.ErrNotFound, dbName, collName)
		}
		var model domain.IndexModel
		for _, m := range c.indexes.List() {
			if m.Name == name {
				model = m
			}
		}
		if err := c.indexes.Drop(name); err != nil {
			return err
		}
		if err := se.journalWrite(JournalEntry{
			Op:         JournalDropIndex,
			Database:   dbName,
			Collection: collName,
			IndexName:  name,
		}); err != nil {
			// put the index back; its documents were valid a moment ago
			_, _ = c.indexes.Build(model, c.documents())
			return err
		}
		return nil
	})
}
