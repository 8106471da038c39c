package client

import (
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/fedecaccia/mongodb/pkg/storage"
)

const (
	// DefaultHost and DefaultPort form the address used when none is given
	DefaultHost = "localhost"
	DefaultPort = 27017

	defaultConnectTimeout = 10 * time.Second
	defaultTimeout        = 30 * time.Second
	defaultMaxConns       = 100
)

// Option configures Connect
type Option func(*config)

type config struct {
	uri            string
	address        string
	engine         *storage.StorageEngine
	timeout        time.Duration
	connectTimeout time.Duration
	httpClient     *http.Client
	logger         zerolog.Logger
	maxConns       int
}

func defaultConfig() config {
	return config{
		address:        DefaultHost + ":" + strconv.Itoa(DefaultPort),
		timeout:        defaultTimeout,
		connectTimeout: defaultConnectTimeout,
		logger:         zerolog.Nop(),
		maxConns:       defaultMaxConns,
	}
}

// WithURI connects to the server named by uri. Accepted schemes are
// docstore://, mongodb://, http://, https:// and mem:// for a fresh
// in-process engine.
func WithURI(uri string) Option {
	return func(c *config) {
		c.uri = uri
	}
}

// WithHost connects to host:port
func WithHost(host string, port int) Option {
	return func(c *config) {
		c.uri = ""
		c.address = host + ":" + strconv.Itoa(port)
	}
}

// WithEngine runs the session against an in-process engine. The engine is
// not closed when the client is.
func WithEngine(engine *storage.StorageEngine) Option {
	return func(c *config) {
		c.engine = engine
	}
}

// WithTimeout bounds every operation whose context carries no deadline.
// Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithConnectTimeout bounds the initial handshake
func WithConnectTimeout(d time.Duration) Option {
	return func(c *config) {
		c.connectTimeout = d
	}
}

// WithHTTPClient replaces the pooled HTTP client used for remote servers
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) {
		c.httpClient = hc
	}
}

// WithLogger sets the session logger (default: disabled)
func WithLogger(logger zerolog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithMaxConns caps the idle connections kept per server
func WithMaxConns(n int) Option {
	return func(c *config) {
		c.maxConns = n
	}
}
