package client

import (
	"context"
	"io"
	"sync"

	"github.com/fedecaccia/mongodb/pkg/domain"
	"github.com/fedecaccia/mongodb/pkg/storage"
)

// transport carries session operations to a store, either in process or
// over the network.
type transport interface {
	domain.Store
	// openCursor starts a find whose results are read one at a time
	openCursor(ctx context.Context, db, coll string, filter domain.Document, opts domain.FindOptions) (source, error)
	ping(ctx context.Context) error
	close() error
}

// source yields find results. next returns io.EOF after the last document.
type source interface {
	next() (domain.Document, error)
	close() error
}

// localTransport serves a session from an in-process engine
type localTransport struct {
	*storage.StorageEngine
	owned bool
}

func (t *localTransport) openCursor(ctx context.Context, db, coll string, filter domain.Document, opts domain.FindOptions) (source, error) {
	docs, err := t.Find(ctx, db, coll, filter, opts)
	if err != nil {
		return nil, err
	}
	return &sliceSource{docs: docs}, nil
}

func (t *localTransport) ping(ctx context.Context) error {
	return ctx.Err()
}

func (t *localTransport) close() error {
	if t.owned {
		return t.StorageEngine.Close()
	}
	return nil
}

// sliceSource yields an already materialized result set
type sliceSource struct {
	mu   sync.Mutex
	docs []domain.Document
	pos  int
}

func (s *sliceSource) next() (domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos >= len(s.docs) {
		return nil, io.EOF
	}
	doc := s.docs[s.pos]
	s.docs[s.pos] = nil
	s.pos++
	return doc, nil
}

func (s *sliceSource) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = nil
	return nil
}
