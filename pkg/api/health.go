package api

import (
	"net/http"

	"github.com/fedecaccia/mongodb/pkg/domain"
)

// HandleHealth handles GET requests to the health check endpoint
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Message: "docstore is running",
	})
}

// HandleStats reports engine statistics when the store provides them
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.storage.(StatsProvider)
	if !ok {
		writeJSON(w, http.StatusNotImplemented, ErrorResponse{
			Error:   http.StatusText(http.StatusNotImplemented),
			Message: "store does not report statistics",
			Code:    http.StatusNotImplemented,
			Kind:    domain.KindInternal,
		})
		return
	}
	writeJSON(w, http.StatusOK, provider.GetStats())
}
