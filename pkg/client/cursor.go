package client

import (
	"context"
	"errors"
	"io"
	"iter"
	"sync"
	"sync/atomic"

	"github.com/fedecaccia/mongodb/pkg/domain"
)

// Cursor iterates over find results. Documents are fetched lazily as Next
// is called. A cursor is not safe for concurrent use, but Close may be
// called from any goroutine; closing the client closes its open cursors.
type Cursor struct {
	client  *Client
	ctx     context.Context
	src     source
	cancel  context.CancelFunc
	current domain.Document
	err     error

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func newCursor(c *Client, ctx context.Context, src source, cancel context.CancelFunc) *Cursor {
	return &Cursor{client: c, ctx: ctx, src: src, cancel: cancel}
}

// Next advances to the next document and reports whether there is one.
// It returns false at the end of the results, on error, and once the
// cursor is closed; Err tells these apart.
func (c *Cursor) Next(ctx context.Context) bool {
	if c.closed.Load() || c.err != nil {
		c.current = nil
		return false
	}
	if err := ctx.Err(); err != nil {
		c.fail(err)
		return false
	}
	doc, err := c.src.next()
	if errors.Is(err, io.EOF) {
		c.current = nil
		c.release()
		return false
	}
	if err != nil {
		if c.closed.Load() {
			// closed underneath us; not an error of the iteration
			c.current = nil
			return false
		}
		c.fail(transportError(c.ctx, err))
		return false
	}
	c.current = doc
	return true
}

func (c *Cursor) fail(err error) {
	c.current = nil
	c.err = c.client.finish(c.ctx, err)
	c.release()
}

// Current returns the document Next moved to
func (c *Cursor) Current() domain.Document {
	return c.current
}

// Err returns the error that ended the iteration, if any
func (c *Cursor) Err() error {
	return c.err
}

// Close releases the cursor's resources. It is safe to call more than once.
func (c *Cursor) Close(ctx context.Context) error {
	c.release()
	return c.closeErr
}

func (c *Cursor) release() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.closeErr = c.src.close()
		c.cancel()
		c.client.untrack(c)
	})
}

// All drains the cursor into a slice and closes it
func (c *Cursor) All(ctx context.Context) ([]domain.Document, error) {
	defer c.Close(ctx)
	docs := []domain.Document{}
	for c.Next(ctx) {
		docs = append(docs, c.current)
	}
	return docs, c.err
}

// Docs iterates over the remaining documents. An error ends the sequence
// with a final (nil, err) pair. The cursor is closed when the loop ends,
// including when it is left early.
func (c *Cursor) Docs(ctx context.Context) iter.Seq2[domain.Document, error] {
	return func(yield func(domain.Document, error) bool) {
		defer c.Close(ctx)
		for c.Next(ctx) {
			if !yield(c.current, nil) {
				return
			}
		}
		if c.err != nil {
			yield(nil, c.err)
		}
	}
}
