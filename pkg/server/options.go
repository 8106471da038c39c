package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/fedecaccia/mongodb/pkg/storage"
)

// Option configures a Server
type Option func(*Server)

// WithStorage serves an existing engine instead of a fresh in-memory one
func WithStorage(engine *storage.StorageEngine) Option {
	return func(s *Server) {
		s.dbEngine = engine
	}
}

// WithLogger sets the server logger (default: disabled)
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithRegistry registers the server metrics on reg. By default every
// server gets its own registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.registry = reg
	}
}
