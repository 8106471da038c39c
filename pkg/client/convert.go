package client

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/fedecaccia/mongodb/pkg/domain"
)

// toDocument converts a caller-supplied document or filter. Documents and
// maps convert directly; other values (typically structs) go through their
// JSON encoding. The result never aliases x.
func toDocument(x any) (domain.Document, error) {
	switch t := x.(type) {
	case nil:
		return nil, nil
	case domain.Document:
		return t.Clone(), nil
	case *domain.Document:
		if t == nil {
			return nil, nil
		}
		return t.Clone(), nil
	case map[string]any:
		return domain.FromMap(t)
	}

	data, err := json.Marshal(x)
	if err != nil {
		return nil, fmt.Errorf("%w: %T: %w", domain.ErrInvalidDocument, x, err)
	}
	var doc domain.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %T does not encode as a document", domain.ErrInvalidDocument, x)
	}
	return doc, nil
}

// toDocuments converts a slice of documents of any supported element type
func toDocuments(xs any) ([]domain.Document, error) {
	switch t := xs.(type) {
	case []domain.Document:
		out := make([]domain.Document, len(t))
		for i, d := range t {
			out[i] = d.Clone()
		}
		return out, nil
	case []map[string]any:
		out := make([]domain.Document, len(t))
		for i, m := range t {
			d, err := domain.FromMap(m)
			if err != nil {
				return nil, fmt.Errorf("document %d: %w", i, err)
			}
			out[i] = d
		}
		return out, nil
	}

	rv := reflect.ValueOf(xs)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("%w: expected a slice of documents, got %T", domain.ErrInvalidDocument, xs)
	}
	out := make([]domain.Document, rv.Len())
	for i := range out {
		d, err := toDocument(rv.Index(i).Interface())
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		if d == nil {
			return nil, fmt.Errorf("%w: document %d is nil", domain.ErrInvalidDocument, i)
		}
		out[i] = d
	}
	return out, nil
}
