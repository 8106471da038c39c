package api

import (
	"github.com/fedecaccia/mongodb/pkg/domain"
)

// Request and response bodies. The remote client transport encodes and
// decodes the same types.

// TimeoutHeader carries the time the caller is willing to wait, as a Go
// duration string. Handlers run the store operation under that deadline.
const TimeoutHeader = "Docstore-Timeout"

// NDJSONContentType is the content type of streamed find results
const NDJSONContentType = "application/x-ndjson"

// MaxBatchSize is the largest number of documents accepted by one batch request
const MaxBatchSize = 10000

// HealthResponse represents the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// DatabasesResponse lists database names
type DatabasesResponse struct {
	Databases []string `json:"databases"`
}

// CollectionsResponse lists the collections of a database
type CollectionsResponse struct {
	Database    string   `json:"database"`
	Collections []string `json:"collections"`
}

// InsertResponse reports the identity of an inserted document
type InsertResponse struct {
	InsertedID domain.Value `json:"inserted_id"`
}

// BatchInsertRequest represents the request body for batch insert operations
type BatchInsertRequest struct {
	Documents []domain.Document `json:"documents"`
	// Ordered defaults to true
	Ordered *bool `json:"ordered,omitempty"`
}

// BatchInsertResponse reports a batch insert. WriteErrors is set when some
// documents were rejected; InsertedIDs lists the ones that were stored.
type BatchInsertResponse struct {
	InsertedIDs   []domain.Value       `json:"inserted_ids"`
	InsertedCount int                  `json:"inserted_count"`
	WriteErrors   []WriteErrorResponse `json:"write_errors,omitempty"`
}

// WriteErrorResponse is one rejected document of a batch
type WriteErrorResponse struct {
	Index     int                  `json:"index"`
	Kind      string               `json:"kind"`
	Message   string               `json:"message"`
	Duplicate *DuplicateKeyDetails `json:"duplicate,omitempty"`
}

// DuplicateKeyDetails identifies the index and key of a duplicate key error
type DuplicateKeyDetails struct {
	Index string          `json:"index"`
	Key   domain.Document `json:"key"`
}

// FindRequest is the body of a find. A missing filter matches everything.
type FindRequest struct {
	Filter domain.Document `json:"filter,omitempty"`
	domain.FindOptions
}

// FilterRequest is the body of count and delete requests
type FilterRequest struct {
	Filter domain.Document `json:"filter,omitempty"`
}

// CountResponse reports a document count
type CountResponse struct {
	Count int64 `json:"count"`
}

// DeleteResponse reports how many documents were removed
type DeleteResponse struct {
	DeletedCount int64 `json:"deleted_count"`
}

// CreateIndexResponse reports the name of the created (or existing) index
type CreateIndexResponse struct {
	Name string `json:"name"`
}

// IndexesResponse lists the indexes of a collection
type IndexesResponse struct {
	Collection string              `json:"collection"`
	Indexes    []domain.IndexModel `json:"indexes"`
}
