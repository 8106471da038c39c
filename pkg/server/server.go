package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/fedecaccia/mongodb/pkg/api"
	"github.com/fedecaccia/mongodb/pkg/storage"
)

const metricsPath = "/metrics"

// Server holds references to storage, router, etc.
type Server struct {
	router     *mux.Router
	dbEngine   *storage.StorageEngine
	logger     zerolog.Logger
	registry   *prometheus.Registry
	metrics    *metrics
	httpServer *http.Server
}

// NewServer creates a new instance of Server.
func NewServer(options ...Option) *Server {
	s := &Server{
		router: mux.NewRouter(),
		logger: zerolog.Nop(),
	}
	for _, option := range options {
		option(s)
	}
	if s.dbEngine == nil {
		s.dbEngine = storage.NewStorageEngine(storage.WithLogger(s.logger))
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
		s.registry.MustRegister(collectors.NewGoCollector())
	}
	s.metrics = newMetrics(s.registry)

	handler := api.NewHandler(s.dbEngine, s.logger)
	handler.RegisterRoutes(s.router)
	s.router.Handle(metricsPath, promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods("GET")

	// Use the logging middleware for all routes
	s.router.Use(s.requestLoggerMiddleware)

	// Customize NotFoundHandler to log 404s
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Warn().Str("method", r.Method).Str("path", r.URL.Path).Msg("no route found")
		http.NotFound(w, r)
	})

	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Engine returns the storage engine served
func (s *Server) Engine() *storage.StorageEngine {
	return s.dbEngine
}

// InitDB restores persisted state and starts background workers
func (s *Server) InitDB() error {
	if err := s.dbEngine.Recover(); err != nil {
		return fmt.Errorf("could not recover database: %w", err)
	}
	s.dbEngine.StartBackgroundWorkers()
	stats := s.dbEngine.GetStats()
	s.logger.Info().
		Int("databases", stats.Databases).
		Int("collections", stats.Collections).
		Int64("documents", stats.Documents).
		Msg("database loaded")
	return nil
}

// SaveDB saves the current database state to file
func (s *Server) SaveDB(filename string) error {
	if err := s.dbEngine.SaveToFile(filename); err != nil {
		return fmt.Errorf("could not save database to %s: %w", filename, err)
	}
	return nil
}

// Router exposes the internal mux.Router.
func (s *Server) Router() http.Handler {
	return s.router
}

// Serve accepts connections on l until Stop is called
func (s *Server) Serve(l net.Listener) error {
	s.logger.Info().Str("addr", l.Addr().String()).Msg("docstore server listening")
	if err := s.httpServer.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Start listens on addr and serves until Stop is called
func (s *Server) Start(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(l)
}

// Stop drains outstanding requests, then closes the engine, which writes a
// final snapshot when a data file is configured.
func (s *Server) Stop(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	return errors.Join(err, s.dbEngine.Close())
}
