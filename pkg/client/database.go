package client

import (
	"context"
)

// Database is a handle to a named database
type Database struct {
	client *Client
	name   string
}

// Name returns the database name
func (d *Database) Name() string { return d.name }

// Client returns the session the handle belongs to
func (d *Database) Client() *Client { return d.client }

// Collection returns a handle to the named collection. Collections come
// into existence with their first insert or index.
func (d *Database) Collection(name string) *Collection {
	return &Collection{client: d.client, db: d, name: name}
}

// ListCollectionNames returns the collection names of the database, sorted
func (d *Database) ListCollectionNames(ctx context.Context) ([]string, error) {
	ctx, cancel, err := d.client.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	names, err := d.client.transport.ListCollectionNames(ctx, d.name)
	return names, d.client.finish(ctx, err)
}

// Drop removes the database and everything in it. Dropping a missing
// database succeeds.
func (d *Database) Drop(ctx context.Context) error {
	ctx, cancel, err := d.client.begin(ctx)
	if err != nil {
		return err
	}
	defer cancel()
	return d.client.finish(ctx, d.client.transport.DropDatabase(ctx, d.name))
}
