package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fedecaccia/mongodb/pkg/domain"
)

// ErrorResponse represents a standard JSON error response
type ErrorResponse struct {
	Error     string               `json:"error"`
	Message   string               `json:"message"`
	Code      int                  `json:"code"`
	Kind      string               `json:"kind"`
	Duplicate *DuplicateKeyDetails `json:"duplicate,omitempty"`
}

// StatusForError maps an error kind to an HTTP status code
func StatusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrDuplicateKey), errors.Is(err, domain.ErrIndexConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrIndexNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrBadFilter), errors.Is(err, domain.ErrBadIndex),
		errors.Is(err, domain.ErrInvalidDocument):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// NewErrorResponse describes err for the wire
func NewErrorResponse(err error) ErrorResponse {
	code := StatusForError(err)
	return ErrorResponse{
		Error:     http.StatusText(code),
		Message:   err.Error(),
		Code:      code,
		Kind:      domain.ErrorKind(err),
		Duplicate: duplicateDetails(err),
	}
}

// Err rebuilds the error described by the response, so that errors.Is and
// errors.As work on the receiving side.
func (e ErrorResponse) Err() error {
	return rebuildError(e.Kind, e.Message, e.Duplicate)
}

// Err rebuilds the error of one rejected batch document
func (e WriteErrorResponse) Err() error {
	return rebuildError(e.Kind, e.Message, e.Duplicate)
}

// WriteJSONError writes a JSON error response for err
func WriteJSONError(w http.ResponseWriter, err error) {
	response := NewErrorResponse(err)
	writeJSON(w, response.Code, response)
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

func duplicateDetails(err error) *DuplicateKeyDetails {
	var dup *domain.DuplicateKeyError
	if !errors.As(err, &dup) {
		return nil
	}
	return &DuplicateKeyDetails{Index: dup.Index, Key: dup.Key}
}

func writeErrorResponses(bulk *domain.BulkWriteError) []WriteErrorResponse {
	out := make([]WriteErrorResponse, len(bulk.WriteErrors))
	for i, we := range bulk.WriteErrors {
		out[i] = WriteErrorResponse{
			Index:     we.Index,
			Kind:      domain.ErrorKind(we.Err),
			Message:   we.Err.Error(),
			Duplicate: duplicateDetails(we.Err),
		}
	}
	return out
}

// remoteError carries an error message received from the server
type remoteError struct {
	kind    error
	message string
}

func (e *remoteError) Error() string { return e.message }

func (e *remoteError) Unwrap() error { return e.kind }

func rebuildError(kind, message string, dup *DuplicateKeyDetails) error {
	if dup != nil {
		return &domain.DuplicateKeyError{Index: dup.Index, Key: dup.Key}
	}
	return &remoteError{kind: domain.ErrorForKind(kind), message: message}
}
