package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/mux"
)

// maxBodyBytes bounds request bodies
const maxBodyBytes = 64 << 20

// namespace returns the database and collection names of the request
func namespace(r *http.Request) (string, string) {
	return pathVar(r, "db"), pathVar(r, "coll")
}

// pathVar returns the unescaped route variable key
func pathVar(r *http.Request, key string) string {
	raw := mux.Vars(r)[key]
	v, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return v
}

// operationContext derives the context a store operation runs under,
// honouring the caller's timeout header.
func operationContext(r *http.Request) (context.Context, context.CancelFunc, error) {
	raw := r.Header.Get(TimeoutHeader)
	if raw == "" {
		ctx, cancel := context.WithCancel(r.Context())
		return ctx, cancel, nil
	}
	timeout, err := time.ParseDuration(raw)
	if err != nil || timeout <= 0 {
		return nil, nil, fmt.Errorf("invalid %s header %q", TimeoutHeader, raw)
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	return ctx, cancel, nil
}

// decodeBody decodes the JSON request body into v. An empty body leaves v
// untouched. Decoding failures are wrapped with kind.
func decodeBody(w http.ResponseWriter, r *http.Request, v any, kind error) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: invalid request body: %w", kind, err)
	}
	return nil
}

// fail logs err and writes it as a JSON error response
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := StatusForError(err)
	event := h.logger.Warn()
	if status >= http.StatusInternalServerError && status != http.StatusGatewayTimeout {
		event = h.logger.Error()
	}
	db, coll := namespace(r)
	event.Err(err).
		Str("op", op).
		Str("db", db).
		Str("collection", coll).
		Int("status", status).
		Msg("request failed")
	WriteJSONError(w, err)
}
