package api

import (
	"encoding/json"
	"net/http"

	"github.com/fedecaccia/mongodb/pkg/domain"
)

// HandleFind handles POST requests running a find. Matching documents are
// streamed as newline-delimited JSON, one document per line, flushed as
// they are written.
func (h *Handler) HandleFind(w http.ResponseWriter, r *http.Request) {
	dbName, collName := namespace(r)
	ctx, cancel, err := operationContext(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, badRequest(err))
		return
	}
	defer cancel()

	var req FindRequest
	if err := decodeBody(w, r, &req, domain.ErrBadFilter); err != nil {
		h.fail(w, r, "find", err)
		return
	}

	docs, err := h.storage.Find(ctx, dbName, collName, req.Filter, req.FindOptions)
	if err != nil {
		h.fail(w, r, "find", err)
		return
	}

	w.Header().Set("Content-Type", NDJSONContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)
	for i, doc := range docs {
		if err := enc.Encode(doc); err != nil {
			// the client went away; the cursor on its side sees a short stream
			h.logger.Warn().Err(err).Str("db", dbName).Str("collection", collName).
				Int("sent", i).Int("total", len(docs)).Msg("find stream interrupted")
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}

	h.logger.Debug().Str("db", dbName).Str("collection", collName).
		Int("documents", len(docs)).Msg("find streamed")
}

// HandleCount handles POST requests counting matching documents
func (h *Handler) HandleCount(w http.ResponseWriter, r *http.Request) {
	dbName, collName := namespace(r)
	ctx, cancel, err := operationContext(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, badRequest(err))
		return
	}
	defer cancel()

	var req FilterRequest
	if err := decodeBody(w, r, &req, domain.ErrBadFilter); err != nil {
		h.fail(w, r, "count", err)
		return
	}

	n, err := h.storage.CountDocuments(ctx, dbName, collName, req.Filter)
	if err != nil {
		h.fail(w, r, "count", err)
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: n})
}

// HandleDelete handles POST requests deleting matching documents
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	dbName, collName := namespace(r)
	ctx, cancel, err := operationContext(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, badRequest(err))
		return
	}
	defer cancel()

	var req FilterRequest
	if err := decodeBody(w, r, &req, domain.ErrBadFilter); err != nil {
		h.fail(w, r, "delete", err)
		return
	}

	n, err := h.storage.DeleteMany(ctx, dbName, collName, req.Filter)
	if err != nil {
		h.fail(w, r, "delete", err)
		return
	}
	h.logger.Debug().Str("db", dbName).Str("collection", collName).Int64("deleted", n).Msg("documents deleted")
	writeJSON(w, http.StatusOK, DeleteResponse{DeletedCount: n})
}
