package domain

import "context"

// Store is the set of operations a document store backend serves. The
// in-process storage engine implements it directly; the HTTP handlers and
// the remote client transport speak it over the wire.
type Store interface {
	InsertOne(ctx context.Context, db, coll string, doc Document) (Value, error)
	// InsertMany returns the identities of the stored documents. A partial
	// failure is reported as *BulkWriteError.
	InsertMany(ctx context.Context, db, coll string, docs []Document, ordered bool) ([]Value, error)
	Find(ctx context.Context, db, coll string, filter Document, opts FindOptions) ([]Document, error)
	CountDocuments(ctx context.Context, db, coll string, filter Document) (int64, error)
	DeleteMany(ctx context.Context, db, coll string, filter Document) (int64, error)
	CreateIndex(ctx context.Context, db, coll string, model IndexModel) (string, error)
	ListIndexes(ctx context.Context, db, coll string) ([]IndexModel, error)
	DropIndex(ctx context.Context, db, coll, name string) error
	DropCollection(ctx context.Context, db, coll string) error
	DropDatabase(ctx context.Context, db string) error
	ListDatabaseNames(ctx context.Context) ([]string, error)
	ListCollectionNames(ctx context.Context, db string) ([]string, error)
}
