package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/fedecaccia/mongodb/pkg/api"
	"github.com/fedecaccia/mongodb/pkg/domain"
)

var _ transport = (*remoteTransport)(nil)

// remoteTransport speaks the docstore HTTP API
type remoteTransport struct {
	baseURL string
	http    *http.Client
	owned   bool
	logger  zerolog.Logger
}

func newRemoteTransport(baseURL string, cfg config) *remoteTransport {
	t := &remoteTransport{baseURL: baseURL, http: cfg.httpClient, logger: cfg.logger}
	if t.http == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.MaxIdleConns = cfg.maxConns
		transport.MaxIdleConnsPerHost = cfg.maxConns
		t.http = &http.Client{Transport: transport}
		t.owned = true
	}
	return t
}

func collectionPath(db, coll string) string {
	return "/databases/" + url.PathEscape(db) + "/collections/" + url.PathEscape(coll)
}

// send issues a request and returns the response when its status is one of
// ok. Any other status is decoded as an api.ErrorResponse.
func (t *remoteTransport) send(ctx context.Context, method, path string, body any, ok ...int) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrInvalidDocument, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if deadline, has := ctx.Deadline(); has {
		if remaining := time.Until(deadline); remaining > 0 {
			req.Header.Set(api.TimeoutHeader, remaining.String())
		}
	}

	resp, err := t.http.Do(req)
	if err != nil {
		return nil, transportError(ctx, err)
	}
	if slices.Contains(ok, resp.StatusCode) {
		return resp, nil
	}
	defer resp.Body.Close()

	var errResp api.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil || errResp.Kind == "" {
		return nil, fmt.Errorf("%s %s: unexpected status %s", method, path, resp.Status)
	}
	return nil, errResp.Err()
}

// call is send followed by decoding the JSON response into out
func (t *remoteTransport) call(ctx context.Context, method, path string, body, out any, ok ...int) error {
	resp, err := t.send(ctx, method, path, body, ok...)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return transportError(ctx, fmt.Errorf("decoding %s %s response: %w", method, path, err))
	}
	return nil
}

// transportError classifies a failure to talk to the server
func transportError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrTimeout):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", domain.ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrConnectionFailure, err)
}

func (t *remoteTransport) ping(ctx context.Context) error {
	var health api.HealthResponse
	if err := t.call(ctx, http.MethodGet, "/health", nil, &health, http.StatusOK); err != nil {
		return err
	}
	if health.Status != "healthy" {
		return fmt.Errorf("server reports status %q", health.Status)
	}
	return nil
}

func (t *remoteTransport) close() error {
	if t.owned {
		t.http.CloseIdleConnections()
	}
	return nil
}

func (t *remoteTransport) InsertOne(ctx context.Context, db, coll string, doc domain.Document) (domain.Value, error) {
	var resp api.InsertResponse
	if err := t.call(ctx, http.MethodPost, collectionPath(db, coll)+"/insert", doc, &resp, http.StatusCreated); err != nil {
		return domain.Value{}, err
	}
	return resp.InsertedID, nil
}

// InsertMany sends docs in batches of at most api.MaxBatchSize. Write
// errors of later batches are reported with indexes into docs.
func (t *remoteTransport) InsertMany(ctx context.Context, db, coll string, docs []domain.Document, ordered bool) ([]domain.Value, error) {
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: no documents provided", domain.ErrInvalidDocument)
	}
	var (
		ids         []domain.Value
		writeErrors []domain.WriteError
	)
	for start := 0; start < len(docs); start += api.MaxBatchSize {
		end := min(start+api.MaxBatchSize, len(docs))
		req := api.BatchInsertRequest{Documents: docs[start:end], Ordered: &ordered}

		var resp api.BatchInsertResponse
		err := t.call(ctx, http.MethodPost, collectionPath(db, coll)+"/batch", req, &resp,
			http.StatusCreated, http.StatusMultiStatus)
		if err != nil {
			if len(ids) == 0 && len(writeErrors) == 0 {
				return nil, err
			}
			writeErrors = append(writeErrors, domain.WriteError{Index: start, Err: err})
			break
		}
		ids = append(ids, resp.InsertedIDs...)
		for _, we := range resp.WriteErrors {
			writeErrors = append(writeErrors, domain.WriteError{Index: start + we.Index, Err: we.Err()})
		}
		if ordered && len(resp.WriteErrors) > 0 {
			break
		}
	}
	if len(writeErrors) > 0 {
		return ids, &domain.BulkWriteError{WriteErrors: writeErrors, InsertedIDs: ids}
	}
	return ids, nil
}

func (t *remoteTransport) Find(ctx context.Context, db, coll string, filter domain.Document, opts domain.FindOptions) ([]domain.Document, error) {
	src, err := t.openCursor(ctx, db, coll, filter, opts)
	if err != nil {
		return nil, err
	}
	defer src.close()

	var docs []domain.Document
	for {
		doc, err := src.next()
		if errors.Is(err, io.EOF) {
			return docs, nil
		}
		if err != nil {
			return nil, transportError(ctx, err)
		}
		docs = append(docs, doc)
	}
}

func (t *remoteTransport) openCursor(ctx context.Context, db, coll string, filter domain.Document, opts domain.FindOptions) (source, error) {
	req := api.FindRequest{Filter: filter, FindOptions: opts}
	resp, err := t.send(ctx, http.MethodPost, collectionPath(db, coll)+"/find", req, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return &streamSource{body: resp.Body, reader: bufio.NewReader(resp.Body)}, nil
}

func (t *remoteTransport) CountDocuments(ctx context.Context, db, coll string, filter domain.Document) (int64, error) {
	var resp api.CountResponse
	err := t.call(ctx, http.MethodPost, collectionPath(db, coll)+"/count", api.FilterRequest{Filter: filter}, &resp, http.StatusOK)
	return resp.Count, err
}

func (t *remoteTransport) DeleteMany(ctx context.Context, db, coll string, filter domain.Document) (int64, error) {
	var resp api.DeleteResponse
	err := t.call(ctx, http.MethodPost, collectionPath(db, coll)+"/delete", api.FilterRequest{Filter: filter}, &resp, http.StatusOK)
	return resp.DeletedCount, err
}

func (t *remoteTransport) CreateIndex(ctx context.Context, db, coll string, model domain.IndexModel) (string, error) {
	var resp api.CreateIndexResponse
	if err := t.call(ctx, http.MethodPost, collectionPath(db, coll)+"/indexes", model, &resp, http.StatusCreated); err != nil {
		return "", err
	}
	return resp.Name, nil
}

func (t *remoteTransport) ListIndexes(ctx context.Context, db, coll string) ([]domain.IndexModel, error) {
	var resp api.IndexesResponse
	if err := t.call(ctx, http.MethodGet, collectionPath(db, coll)+"/indexes", nil, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return resp.Indexes, nil
}

func (t *remoteTransport) DropIndex(ctx context.Context, db, coll, name string) error {
	return t.call(ctx, http.MethodDelete, collectionPath(db, coll)+"/indexes/"+url.PathEscape(name), nil, nil, http.StatusNoContent)
}

func (t *remoteTransport) DropCollection(ctx context.Context, db, coll string) error {
	return t.call(ctx, http.MethodDelete, collectionPath(db, coll), nil, nil, http.StatusNoContent)
}

func (t *remoteTransport) DropDatabase(ctx context.Context, db string) error {
	return t.call(ctx, http.MethodDelete, "/databases/"+url.PathEscape(db), nil, nil, http.StatusNoContent)
}

func (t *remoteTransport) ListDatabaseNames(ctx context.Context) ([]string, error) {
	var resp api.DatabasesResponse
	if err := t.call(ctx, http.MethodGet, "/databases", nil, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return resp.Databases, nil
}

func (t *remoteTransport) ListCollectionNames(ctx context.Context, db string) ([]string, error) {
	var resp api.CollectionsResponse
	if err := t.call(ctx, http.MethodGet, "/databases/"+url.PathEscape(db)+"/collections", nil, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return resp.Collections, nil
}

// streamSource decodes a newline-delimited JSON response one document at
// a time.
type streamSource struct {
	body   io.ReadCloser
	reader *bufio.Reader
}

func (s *streamSource) next() (domain.Document, error) {
	line, err := s.reader.ReadBytes('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) == 0 {
			return nil, io.EOF
		}
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("find stream ended mid-document: %w", io.ErrUnexpectedEOF)
		}
		return nil, err
	}
	var doc domain.Document
	if err := json.Unmarshal(line, &doc); err != nil {
		return nil, fmt.Errorf("decoding find result: %w", err)
	}
	return doc, nil
}

func (s *streamSource) close() error {
	// drain a little so the connection can be reused, then release it
	io.CopyN(io.Discard, s.body, 4<<10)
	return s.body.Close()
}
