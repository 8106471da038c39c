package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/fedecaccia/mongodb/pkg/domain"
)

// HandleInsert handles POST requests inserting one document
func (h *Handler) HandleInsert(w http.ResponseWriter, r *http.Request) {
	dbName, collName := namespace(r)
	ctx, cancel, err := operationContext(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, badRequest(err))
		return
	}
	defer cancel()

	var doc domain.Document
	if err := decodeBody(w, r, &doc, domain.ErrInvalidDocument); err != nil {
		h.fail(w, r, "insert", err)
		return
	}
	if doc == nil {
		h.fail(w, r, "insert", fmt.Errorf("%w: request body must be a JSON object", domain.ErrInvalidDocument))
		return
	}

	id, err := h.storage.InsertOne(ctx, dbName, collName, doc)
	if err != nil {
		h.fail(w, r, "insert", err)
		return
	}

	h.logger.Debug().Str("db", dbName).Str("collection", collName).Stringer("id", id).Msg("document inserted")
	writeJSON(w, http.StatusCreated, InsertResponse{InsertedID: id})
}

// HandleBatchInsert handles POST requests inserting many documents. A
// partially applied batch answers 207 with the rejected documents listed.
func (h *Handler) HandleBatchInsert(w http.ResponseWriter, r *http.Request) {
	dbName, collName := namespace(r)
	ctx, cancel, err := operationContext(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, badRequest(err))
		return
	}
	defer cancel()

	var req BatchInsertRequest
	if err := decodeBody(w, r, &req, domain.ErrInvalidDocument); err != nil {
		h.fail(w, r, "batchInsert", err)
		return
	}
	if len(req.Documents) == 0 {
		h.fail(w, r, "batchInsert", fmt.Errorf("%w: no documents provided", domain.ErrInvalidDocument))
		return
	}
	if len(req.Documents) > MaxBatchSize {
		h.fail(w, r, "batchInsert", fmt.Errorf("%w: maximum %d documents allowed per batch, got %d",
			domain.ErrInvalidDocument, MaxBatchSize, len(req.Documents)))
		return
	}
	ordered := req.Ordered == nil || *req.Ordered

	ids, err := h.storage.InsertMany(ctx, dbName, collName, req.Documents, ordered)
	var bulk *domain.BulkWriteError
	if err != nil && !errors.As(err, &bulk) {
		h.fail(w, r, "batchInsert", err)
		return
	}

	response := BatchInsertResponse{InsertedIDs: ids, InsertedCount: len(ids)}
	status := http.StatusCreated
	if bulk != nil {
		response.InsertedIDs = bulk.InsertedIDs
		response.InsertedCount = len(bulk.InsertedIDs)
		response.WriteErrors = writeErrorResponses(bulk)
		status = http.StatusMultiStatus
		h.logger.Warn().Str("db", dbName).Str("collection", collName).
			Int("inserted", response.InsertedCount).Int("failed", len(bulk.WriteErrors)).
			Msg("batch insert partially applied")
	}
	if response.InsertedIDs == nil {
		response.InsertedIDs = []domain.Value{}
	}

	h.logger.Debug().Str("db", dbName).Str("collection", collName).
		Int("inserted", response.InsertedCount).Msg("batch insert")
	writeJSON(w, status, response)
}
