package api

import (
	"net/http"

	"github.com/fedecaccia/mongodb/pkg/domain"
)

// HandleCreateIndex creates an index described by the IndexModel body
func (h *Handler) HandleCreateIndex(w http.ResponseWriter, r *http.Request) {
	dbName, collName := namespace(r)
	ctx, cancel, err := operationContext(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, badRequest(err))
		return
	}
	defer cancel()

	var model domain.IndexModel
	if err := decodeBody(w, r, &model, domain.ErrBadIndex); err != nil {
		h.fail(w, r, "createIndex", err)
		return
	}

	name, err := h.storage.CreateIndex(ctx, dbName, collName, model)
	if err != nil {
		h.fail(w, r, "createIndex", err)
		return
	}

	h.logger.Info().Str("db", dbName).Str("collection", collName).Str("index", name).Msg("index created")
	writeJSON(w, http.StatusCreated, CreateIndexResponse{Name: name})
}

// HandleListIndexes returns the indexes of a collection sorted by name
func (h *Handler) HandleListIndexes(w http.ResponseWriter, r *http.Request) {
	dbName, collName := namespace(r)
	ctx, cancel, err := operationContext(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, badRequest(err))
		return
	}
	defer cancel()

	indexes, err := h.storage.ListIndexes(ctx, dbName, collName)
	if err != nil {
		h.fail(w, r, "listIndexes", err)
		return
	}
	writeJSON(w, http.StatusOK, IndexesResponse{Collection: collName, Indexes: indexes})
}

// HandleDropIndex drops an index by name
func (h *Handler) HandleDropIndex(w http.ResponseWriter, r *http.Request) {
	dbName, collName := namespace(r)
	name := pathVar(r, "name")
	ctx, cancel, err := operationContext(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, badRequest(err))
		return
	}
	defer cancel()

	if err := h.storage.DropIndex(ctx, dbName, collName, name); err != nil {
		h.fail(w, r, "dropIndex", err)
		return
	}
	h.logger.Info().Str("db", dbName).Str("collection", collName).Str("index", name).Msg("index dropped")
	w.WriteHeader(http.StatusNoContent)
}
