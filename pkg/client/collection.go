package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/fedecaccia/mongodb/pkg/domain"
)

// Collection is a handle to a named collection. Documents and filters may
// be given as domain.Document, map[string]any, or any value whose JSON
// encoding is an object.
type Collection struct {
	client *Client
	db     *Database
	name   string
}

// InsertOneResult reports the identity of an inserted document
type InsertOneResult struct {
	InsertedID domain.Value
}

// InsertManyResult reports the identities of the inserted documents in
// input order
type InsertManyResult struct {
	InsertedIDs []domain.Value
}

// FindOption adjusts a find
type FindOption func(*domain.FindOptions)

// SortBy orders results by field; later calls break ties of earlier ones
func SortBy(field string, direction int) FindOption {
	return func(o *domain.FindOptions) {
		o.Sort = append(o.Sort, domain.SortField{Field: field, Direction: direction})
	}
}

// Skip drops the first n results
func Skip(n int64) FindOption {
	return func(o *domain.FindOptions) { o.Skip = n }
}

// Limit returns at most n results; 0 means no limit
func Limit(n int64) FindOption {
	return func(o *domain.FindOptions) { o.Limit = n }
}

// InsertManyOption adjusts an InsertMany
type InsertManyOption func(*insertManyOptions)

type insertManyOptions struct {
	ordered bool
}

// Ordered selects whether InsertMany stops at the first failing document
// (the default) or attempts every document.
func Ordered(ordered bool) InsertManyOption {
	return func(o *insertManyOptions) { o.ordered = ordered }
}

// Name returns the collection name
func (c *Collection) Name() string { return c.name }

// Database returns the database the collection belongs to
func (c *Collection) Database() *Database { return c.db }

// InsertOne stores doc, assigning a fresh ObjectID _id when it has none.
// A unique index violation fails with a *domain.DuplicateKeyError and
// leaves the collection unchanged.
func (c *Collection) InsertOne(ctx context.Context, doc any) (*InsertOneResult, error) {
	d, err := toDocument(doc)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, fmt.Errorf("%w: document is nil", domain.ErrInvalidDocument)
	}
	c.client.ids.Assign(&d)

	ctx, cancel, err := c.client.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	id, err := c.client.transport.InsertOne(ctx, c.db.name, c.name, d)
	if err != nil {
		return nil, c.client.finish(ctx, err)
	}
	return &InsertOneResult{InsertedID: id}, nil
}

// InsertMany stores docs, a slice of documents. When some documents are
// rejected the returned error is a *domain.BulkWriteError, and the result
// still lists the identities of those that were stored.
func (c *Collection) InsertMany(ctx context.Context, docs any, opts ...InsertManyOption) (*InsertManyResult, error) {
	o := insertManyOptions{ordered: true}
	for _, opt := range opts {
		opt(&o)
	}
	ds, err := toDocuments(docs)
	if err != nil {
		return nil, err
	}
	if len(ds) == 0 {
		return nil, fmt.Errorf("%w: no documents provided", domain.ErrInvalidDocument)
	}
	for i := range ds {
		c.client.ids.Assign(&ds[i])
	}

	ctx, cancel, err := c.client.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	ids, err := c.client.transport.InsertMany(ctx, c.db.name, c.name, ds, o.ordered)
	var bulk *domain.BulkWriteError
	if err != nil && !errors.As(err, &bulk) {
		return nil, c.client.finish(ctx, err)
	}
	if bulk != nil {
		return &InsertManyResult{InsertedIDs: bulk.InsertedIDs}, err
	}
	return &InsertManyResult{InsertedIDs: ids}, nil
}

// Find runs a query and returns a cursor over the matches. The cursor must
// be closed, or drained to the end.
func (c *Collection) Find(ctx context.Context, filter any, opts ...FindOption) (*Cursor, error) {
	f, err := toDocument(filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrBadFilter, err)
	}
	var fo domain.FindOptions
	for _, opt := range opts {
		opt(&fo)
	}

	ctx, cancel, err := c.client.begin(ctx)
	if err != nil {
		return nil, err
	}
	src, err := c.client.transport.openCursor(ctx, c.db.name, c.name, f, fo)
	if err != nil {
		cancel()
		return nil, c.client.finish(ctx, err)
	}
	cur := newCursor(c.client, ctx, src, cancel)
	if !c.client.track(cur) {
		cur.release()
		return nil, domain.ErrClientClosed
	}
	return cur, nil
}

// FindOne returns the first match in collection order, or after sorting
// when SortBy is given. No match fails with domain.ErrNotFound.
func (c *Collection) FindOne(ctx context.Context, filter any, opts ...FindOption) (domain.Document, error) {
	cur, err := c.Find(ctx, filter, append(opts[:len(opts):len(opts)], Limit(1))...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	if cur.Next(ctx) {
		return cur.Current(), nil
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: no document in %s.%s matches", domain.ErrNotFound, c.db.name, c.name)
}

// CountDocuments counts the documents matching filter
func (c *Collection) CountDocuments(ctx context.Context, filter any) (int64, error) {
	f, err := toDocument(filter)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrBadFilter, err)
	}
	ctx, cancel, err := c.client.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer cancel()
	n, err := c.client.transport.CountDocuments(ctx, c.db.name, c.name, f)
	return n, c.client.finish(ctx, err)
}

// DeleteMany removes the documents matching filter and reports how many
func (c *Collection) DeleteMany(ctx context.Context, filter any) (int64, error) {
	f, err := toDocument(filter)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrBadFilter, err)
	}
	ctx, cancel, err := c.client.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer cancel()
	n, err := c.client.transport.DeleteMany(ctx, c.db.name, c.name, f)
	return n, c.client.finish(ctx, err)
}

// CreateIndex builds an index and returns its name. Requesting an existing
// index again returns its name; a unique index over duplicated data fails
// with domain.ErrIndexConflict.
func (c *Collection) CreateIndex(ctx context.Context, model domain.IndexModel) (string, error) {
	ctx, cancel, err := c.client.begin(ctx)
	if err != nil {
		return "", err
	}
	defer cancel()
	name, err := c.client.transport.CreateIndex(ctx, c.db.name, c.name, model)
	return name, c.client.finish(ctx, err)
}

// ListIndexes returns the collection's indexes sorted by name
func (c *Collection) ListIndexes(ctx context.Context) ([]domain.IndexModel, error) {
	ctx, cancel, err := c.client.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	indexes, err := c.client.transport.ListIndexes(ctx, c.db.name, c.name)
	return indexes, c.client.finish(ctx, err)
}

// DropIndex removes the named index
func (c *Collection) DropIndex(ctx context.Context, name string) error {
	ctx, cancel, err := c.client.begin(ctx)
	if err != nil {
		return err
	}
	defer cancel()
	return c.client.finish(ctx, c.client.transport.DropIndex(ctx, c.db.name, c.name, name))
}

// Drop removes the collection with its documents and indexes. Dropping a
// missing collection succeeds.
func (c *Collection) Drop(ctx context.Context) error {
	ctx, cancel, err := c.client.begin(ctx)
	if err != nil {
		return err
	}
	defer cancel()
	return c.client.finish(ctx, c.client.transport.DropCollection(ctx, c.db.name, c.name))
}
