package api

import (
	"github.com/rs/zerolog"

	"github.com/fedecaccia/mongodb/pkg/domain"
	"github.com/fedecaccia/mongodb/pkg/storage"
)

// StatsProvider is implemented by stores that can report their size
type StatsProvider interface {
	GetStats() storage.Stats
}

// Handler provides HTTP handlers for the database API
type Handler struct {
	storage domain.Store
	logger  zerolog.Logger
}

// NewHandler creates a new API handler serving store
func NewHandler(store domain.Store, logger zerolog.Logger) *Handler {
	return &Handler{
		storage: store,
		logger:  logger,
	}
}
