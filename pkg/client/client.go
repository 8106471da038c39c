// Package client is the session layer of the document store driver: it
// connects to a server (or an in-process engine), hands out database and
// collection handles, and runs operations under per-operation deadlines.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fedecaccia/mongodb/pkg/domain"
	"github.com/fedecaccia/mongodb/pkg/identity"
	"github.com/fedecaccia/mongodb/pkg/storage"
)

// Client is a connected session. It is safe for concurrent use and must be
// closed to release its connections.
type Client struct {
	transport transport
	ids       *identity.Generator
	logger    zerolog.Logger
	timeout   time.Duration

	mu      sync.Mutex
	closed  bool
	cursors map[*Cursor]struct{}
}

// Connect opens a session and verifies the server answers within the
// connect timeout. Failure to reach it is reported as ErrConnectionFailure.
func Connect(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	var t transport
	switch {
	case cfg.engine != nil:
		t = &localTransport{StorageEngine: cfg.engine}
	case cfg.uri != "":
		ep, err := parseURI(cfg.uri)
		if err != nil {
			return nil, err
		}
		if ep.inProcess {
			engine := storage.NewStorageEngine(storage.WithLogger(cfg.logger))
			t = &localTransport{StorageEngine: engine, owned: true}
		} else {
			t = newRemoteTransport(ep.baseURL, cfg)
		}
	default:
		t = newRemoteTransport("http://"+cfg.address, cfg)
	}

	pingCtx := ctx
	if cfg.connectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.connectTimeout)
		defer cancel()
	}
	if err := t.ping(pingCtx); err != nil {
		t.close()
		cfg.logger.Warn().Err(err).Msg("connect failed")
		if errors.Is(err, domain.ErrConnectionFailure) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrConnectionFailure, err)
	}

	cfg.logger.Debug().Msg("connected")
	return &Client{
		transport: t,
		ids:       identity.New(),
		logger:    cfg.logger,
		timeout:   cfg.timeout,
		cursors:   make(map[*Cursor]struct{}),
	}, nil
}

// Database returns a handle to the named database. Databases come into
// existence with their first write.
func (c *Client) Database(name string) *Database {
	return &Database{client: c, name: name}
}

// Ping checks the server is reachable
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel, err := c.begin(ctx)
	if err != nil {
		return err
	}
	defer cancel()
	return c.finish(ctx, c.transport.ping(ctx))
}

// ListDatabaseNames returns the names of the non-empty databases, sorted
func (c *Client) ListDatabaseNames(ctx context.Context) ([]string, error) {
	ctx, cancel, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	names, err := c.transport.ListDatabaseNames(ctx)
	return names, c.finish(ctx, err)
}

// Close releases the session's connections and any cursor still open.
// Operations on a closed client fail with ErrClientClosed; closing twice
// is a no-op.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	cursors := c.cursors
	c.cursors = nil
	c.mu.Unlock()

	for cur := range cursors {
		cur.Close(ctx)
	}
	err := c.transport.close()
	c.logger.Debug().Int("cursors", len(cursors)).Msg("client closed")
	return err
}

// begin checks the session is open and applies the operation timeout when
// ctx has no deadline of its own.
func (c *Client) begin(ctx context.Context) (context.Context, context.CancelFunc, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, nil, domain.ErrClientClosed
	}
	if _, ok := ctx.Deadline(); ok || c.timeout <= 0 {
		ctx, cancel := context.WithCancel(ctx)
		return ctx, cancel, nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	return ctx, cancel, nil
}

// finish normalizes an operation error: deadline expiry is ErrTimeout
// whichever layer noticed it.
func (c *Client) finish(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrTimeout) &&
		(errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)) {
		err = fmt.Errorf("%w: %w", domain.ErrTimeout, err)
	}
	if errors.Is(err, domain.ErrConnectionFailure) {
		c.logger.Warn().Err(err).Msg("transport failure")
	}
	return err
}

// track registers an open cursor so Close can release it
func (c *Client) track(cur *Cursor) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.cursors[cur] = struct{}{}
	return true
}

func (c *Client) untrack(cur *Cursor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cursors, cur)
}
