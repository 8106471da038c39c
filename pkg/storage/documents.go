package storage

import (
	"context"
	"fmt"

	"github.com/fedecaccia/mongodb/pkg/domain"
	"github.com/fedecaccia/mongodb/pkg/indexing"
	"github.com/fedecaccia/mongodb/pkg/query"
)

// prepare copies doc, assigns an identity if it has none and validates it
func (se *StorageEngine) prepare(doc domain.Document) (domain.Document, domain.Value, error) {
	doc = doc.Clone()
	id := se.ids.Assign(&doc)
	if err := doc.Validate(); err != nil {
		return nil, domain.Value{}, err
	}
	return doc, id, nil
}

// InsertOne stores doc, generating an _id when absent. A unique index
// violation returns a *domain.DuplicateKeyError and leaves the collection
// unchanged.
func (se *StorageEngine) InsertOne(ctx context.Context, dbName, collName string, doc domain.Document) (domain.Value, error) {
	if err := checkContext(ctx); err != nil {
		return domain.Value{}, err
	}
	if err := validateNamespace(dbName, collName); err != nil {
		return domain.Value{}, err
	}
	doc, id, err := se.prepare(doc)
	if err != nil {
		return domain.Value{}, err
	}

	err = se.withCollectionWriteLock(dbName, collName, func(c *collection) error {
		if err := c.check(doc); err != nil {
			return err
		}
		if err := se.journalWrite(JournalEntry{
			Op:         JournalInsert,
			Database:   dbName,
			Collection: collName,
			Documents:  []domain.Document{doc},
		}); err != nil {
			return err
		}
		return c.apply(doc)
	})
	if err != nil {
		return domain.Value{}, err
	}
	return id, nil
}

// InsertMany stores docs in order. With ordered set, the first failure stops
// the batch; otherwise every document is attempted. Documents stored before
// a failure stay stored: the result lists their identities and the error is
// a *domain.BulkWriteError naming each failed document by position.
func (se *StorageEngine) InsertMany(ctx context.Context, dbName, collName string, docs []domain.Document, ordered bool) ([]domain.Value, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	if err := validateNamespace(dbName, collName); err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: no documents to insert", domain.ErrInvalidDocument)
	}

	var (
		ids       []domain.Value
		writeErrs []domain.WriteError
	)
	err := se.withCollectionWriteLock(dbName, collName, func(c *collection) error {
		stored := make([]domain.Document, 0, len(docs))
		for i, raw := range docs {
			if err := checkContext(ctx); err != nil {
				// documents stored so far are kept and journaled below
				writeErrs = append(writeErrs, domain.WriteError{Index: i, Err: err})
				break
			}
			doc, id, err := se.prepare(raw)
			if err == nil {
				err = c.insert(doc)
			}
			if err != nil {
				writeErrs = append(writeErrs, domain.WriteError{Index: i, Err: err})
				if ordered {
					break
				}
				continue
			}
			stored = append(stored, doc)
			ids = append(ids, id)
		}
		if len(stored) == 0 {
			return nil
		}
		err := se.journalWrite(JournalEntry{
			Op:         JournalInsert,
			Database:   dbName,
			Collection: collName,
			Documents:  stored,
		})
		if err != nil {
			// undo the batch so memory matches the journal
			undo := make(map[string]struct{}, len(ids))
			for _, id := range ids {
				undo[indexing.IDKey(id)] = struct{}{}
			}
			c.remove(undo)
			ids, writeErrs = nil, nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(writeErrs) > 0 {
		return ids, &domain.BulkWriteError{WriteErrors: writeErrs, InsertedIDs: ids}
	}
	return ids, nil
}

// Find returns copies of the documents matching filter, sorted and windowed
// by opts. The result is a snapshot: later writes do not affect it. A
// missing collection yields no documents.
func (se *StorageEngine) Find(ctx context.Context, dbName, collName string, filter domain.Document, opts domain.FindOptions) ([]domain.Document, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	m, err := query.Compile(filter)
	if err != nil {
		return nil, err
	}

	var matched []domain.Document
	err = se.withCollectionReadLock(dbName, collName, func(c *collection) error {
		if c == nil {
			return nil
		}
		entries, err := c.match(ctx, m)
		if err != nil {
			return err
		}
		matched = make([]domain.Document, len(entries))
		for i, e := range entries {
			matched[i] = e.doc
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	query.SortDocuments(matched, opts.Sort)
	matched = window(matched, opts.Skip, opts.Limit)

	out := make([]domain.Document, len(matched))
	for i, doc := range matched {
		out[i] = doc.Clone()
	}
	return out, nil
}

func window(docs []domain.Document, skip, limit int64) []domain.Document {
	if skip >= int64(len(docs)) {
		return nil
	}
	docs = docs[skip:]
	if limit > 0 && limit < int64(len(docs)) {
		docs = docs[:limit]
	}
	return docs
}

// FindOne returns the first matching document in collection order, or
// domain.ErrNotFound.
func (se *StorageEngine) FindOne(ctx context.Context, dbName, collName string, filter domain.Document) (domain.Document, error) {
	docs, err := se.Find(ctx, dbName, collName, filter, domain.FindOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: no document in %s.%s matches %s", domain.ErrNotFound, dbName, collName, filter)
	}
	return docs[0], nil
}

// CountDocuments counts the documents matching filter
func (se *StorageEngine) CountDocuments(ctx context.Context, dbName, collName string, filter domain.Document) (int64, error) {
	if err := checkContext(ctx); err != nil {
		return 0, err
	}
	m, err := query.Compile(filter)
	if err != nil {
		return 0, err
	}
	var n int64
	err = se.withCollectionReadLock(dbName, collName, func(c *collection) error {
		if c == nil {
			return nil
		}
		if len(filter) == 0 {
			n = int64(len(c.docs))
			return nil
		}
		entries, err := c.match(ctx, m)
		n = int64(len(entries))
		return err
	})
	return n, err
}

// DeleteMany removes every document matching filter and returns how many
// were removed. Identities of removed documents are never handed out again.
func (se *StorageEngine) DeleteMany(ctx context.Context, dbName, collName string, filter domain.Document) (int64, error) {
	if err := checkContext(ctx); err != nil {
		return 0, err
	}
	m, err := query.Compile(filter)
	if err != nil {
		return 0, err
	}
	var n int64
	err = se.withExistingCollectionWriteLock(dbName, collName, func(c *collection) error {
		if c == nil {
			return nil
		}
		entries, err := c.match(ctx, m)
		if err != nil || len(entries) == 0 {
			return err
		}
		keys := make(map[string]struct{}, len(entries))
		ids := make([]domain.Document, len(entries))
		for i, e := range entries {
			id, _ := e.doc.ID()
			keys[indexing.IDKey(id)] = struct{}{}
			ids[i] = domain.NewDocument(domain.Element{Key: domain.IDField, Value: id})
		}
		if err := se.journalWrite(JournalEntry{
			Op:         JournalDelete,
			Database:   dbName,
			Collection: collName,
			Documents:  ids,
		}); err != nil {
			return err
		}
		c.remove(keys)
		n = int64(len(entries))
		return nil
	})
	return n, err
}
