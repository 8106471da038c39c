package domain

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// IDField is the reserved identity field of every document
const IDField = "_id"

// Element is a single field of a Document
type Element struct {
	Key   string
	Value Value
}

// E builds an Element from a Go value. It panics on unsupported types, so
// it is meant for literals.
func E(key string, x any) Element {
	return Element{Key: key, Value: MustValue(x)}
}

// Document is an ordered mapping from field name to value
type Document []Element

// NewDocument returns a document holding elems in order
func NewDocument(elems ...Element) Document {
	return Document(elems)
}

// FromMap builds a document from a Go map. Go maps are unordered, so keys
// are laid out in sorted order.
func FromMap(m map[string]any) (Document, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	doc := make(Document, 0, len(keys))
	for _, k := range keys {
		v, err := ValueOf(m[k])
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		doc = append(doc, Element{Key: k, Value: v})
	}
	return doc, nil
}

func (d Document) Len() int { return len(d) }

// Get returns the top-level field named key
func (d Document) Get(key string) (Value, bool) {
	for _, e := range d {
		if e.Key == key {
			return e.Value, true
		}
	}
	return Value{}, false
}

// Has reports whether a top-level field named key exists
func (d Document) Has(key string) bool {
	_, ok := d.Get(key)
	return ok
}

// ID returns the identity field if present
func (d Document) ID() (Value, bool) {
	return d.Get(IDField)
}

// Lookup resolves a dotted path such as "address.city". Numeric segments
// index into arrays.
func (d Document) Lookup(path string) (Value, bool) {
	if !strings.Contains(path, ".") {
		return d.Get(path)
	}
	segments := strings.Split(path, ".")
	cur, ok := d.Get(segments[0])
	if !ok {
		return Value{}, false
	}
	for _, seg := range segments[1:] {
		switch cur.Kind() {
		case KindDocument:
			cur, ok = cur.doc.Get(seg)
			if !ok {
				return Value{}, false
			}
		case KindArray:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(cur.arr) {
				return Value{}, false
			}
			cur = cur.arr[i]
		default:
			return Value{}, false
		}
	}
	return cur, true
}

// Set replaces the value of key in place, or appends it when absent
func (d *Document) Set(key string, v Value) {
	for i := range *d {
		if (*d)[i].Key == key {
			(*d)[i].Value = v
			return
		}
	}
	*d = append(*d, Element{Key: key, Value: v})
}

// Prepend inserts key at the front of the document
func (d *Document) Prepend(key string, v Value) {
	*d = append(Document{{Key: key, Value: v}}, *d...)
}

// Keys returns field names in document order
func (d Document) Keys() []string {
	keys := make([]string, len(d))
	for i, e := range d {
		keys[i] = e.Key
	}
	return keys
}

// Clone returns a deep copy
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for i, e := range d {
		out[i] = Element{Key: e.Key, Value: e.Value.Clone()}
	}
	return out
}

// Map converts the document into a map[string]any, losing field order
func (d Document) Map() map[string]any {
	m := make(map[string]any, len(d))
	for _, e := range d {
		m[e.Key] = e.Value.Interface()
	}
	return m
}

// Equal reports whether both documents hold the same fields in the same
// order with equal values.
func (d Document) Equal(o Document) bool {
	return compareDocuments(d, o) == 0
}

// Validate rejects empty and duplicate field names at any depth,
// non-finite doubles and array-valued identities.
func (d Document) Validate() error {
	seen := make(map[string]struct{}, len(d))
	for _, e := range d {
		if e.Key == "" {
			return fmt.Errorf("%w: empty field name", ErrInvalidDocument)
		}
		if _, dup := seen[e.Key]; dup {
			return fmt.Errorf("%w: duplicate field %q", ErrInvalidDocument, e.Key)
		}
		seen[e.Key] = struct{}{}
		if err := validateValue(e.Value); err != nil {
			return fmt.Errorf("field %q: %w", e.Key, err)
		}
	}
	if id, ok := d.ID(); ok && id.Kind() == KindArray {
		return fmt.Errorf("%w: %s cannot be an array", ErrInvalidDocument, IDField)
	}
	return nil
}

func validateValue(v Value) error {
	switch v.kind {
	case KindDouble:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return fmt.Errorf("%w: %v is not a finite number", ErrInvalidDocument, v.f)
		}
	case KindDocument:
		return v.doc.Validate()
	case KindArray:
		for i, e := range v.arr {
			if err := validateValue(e); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
		}
	}
	return nil
}

func (d Document) String() string {
	parts := make([]string, len(d))
	for i, e := range d {
		parts[i] = e.Key + ": " + e.Value.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
