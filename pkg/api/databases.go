package api

import (
	"net/http"
)

// HandleListDatabases handles GET /databases
func (h *Handler) HandleListDatabases(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, err := operationContext(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, badRequest(err))
		return
	}
	defer cancel()

	names, err := h.storage.ListDatabaseNames(ctx)
	if err != nil {
		h.fail(w, r, "listDatabases", err)
		return
	}
	writeJSON(w, http.StatusOK, DatabasesResponse{Databases: names})
}

// HandleDropDatabase handles DELETE /databases/{db}
func (h *Handler) HandleDropDatabase(w http.ResponseWriter, r *http.Request) {
	dbName := pathVar(r, "db")
	ctx, cancel, err := operationContext(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, badRequest(err))
		return
	}
	defer cancel()

	if err := h.storage.DropDatabase(ctx, dbName); err != nil {
		h.fail(w, r, "dropDatabase", err)
		return
	}
	h.logger.Info().Str("db", dbName).Msg("database dropped")
	w.WriteHeader(http.StatusNoContent)
}

// HandleListCollections handles GET /databases/{db}/collections
func (h *Handler) HandleListCollections(w http.ResponseWriter, r *http.Request) {
	dbName := pathVar(r, "db")
	ctx, cancel, err := operationContext(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, badRequest(err))
		return
	}
	defer cancel()

	names, err := h.storage.ListCollectionNames(ctx, dbName)
	if err != nil {
		h.fail(w, r, "listCollections", err)
		return
	}
	writeJSON(w, http.StatusOK, CollectionsResponse{Database: dbName, Collections: names})
}

// HandleDropCollection handles DELETE /databases/{db}/collections/{coll}
func (h *Handler) HandleDropCollection(w http.ResponseWriter, r *http.Request) {
	dbName, collName := namespace(r)
	ctx, cancel, err := operationContext(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, badRequest(err))
		return
	}
	defer cancel()

	if err := h.storage.DropCollection(ctx, dbName, collName); err != nil {
		h.fail(w, r, "dropCollection", err)
		return
	}
	h.logger.Info().Str("db", dbName).Str("collection", collName).Msg("collection dropped")
	w.WriteHeader(http.StatusNoContent)
}

func badRequest(err error) ErrorResponse {
	return ErrorResponse{
		Error:   http.StatusText(http.StatusBadRequest),
		Message: err.Error(),
		Code:    http.StatusBadRequest,
		Kind:    "BadRequest",
	}
}
