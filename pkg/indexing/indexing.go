package indexing

import (
	"fmt"
	"math"
	"sort"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/fedecaccia/mongodb/pkg/domain"
)

// Index maps the encoded key of each document to the identities holding it
type Index struct {
	model    domain.IndexModel
	entries  map[string]map[string]struct{}
	multikey bool // some indexed value is an array
}

func newIndex(model domain.IndexModel) *Index {
	return &Index{
		model:   model,
		entries: make(map[string]map[string]struct{}),
	}
}

// Model returns the index specification
func (idx *Index) Model() domain.IndexModel { return idx.model }

// keyFor extracts and encodes the indexed values of doc. skip is true for a
// sparse index when doc has none of the indexed fields.
func (idx *Index) keyFor(doc domain.Document) (key string, values domain.Document, skip bool, err error) {
	values = make(domain.Document, 0, len(idx.model.Keys))
	present := 0
	for _, k := range idx.model.Keys {
		v, ok := doc.Lookup(k.Field)
		if ok {
			present++
		}
		values = append(values, domain.Element{Key: k.Field, Value: v})
	}
	if idx.model.Sparse && present == 0 {
		return "", nil, true, nil
	}
	parts := make([]domain.Value, len(values))
	for i, e := range values {
		parts[i] = e.Value
	}
	key, err = EncodeKey(parts...)
	return key, values, false, err
}

func (idx *Index) add(idKey string, doc domain.Document) error {
	key, values, skip, err := idx.keyFor(doc)
	if err != nil || skip {
		return err
	}
	for _, e := range values {
		if e.Value.Kind() == domain.KindArray {
			idx.multikey = true
		}
	}
	ids, ok := idx.entries[key]
	if !ok {
		ids = make(map[string]struct{}, 1)
		idx.entries[key] = ids
	}
	ids[idKey] = struct{}{}
	return nil
}

func (idx *Index) remove(idKey string, doc domain.Document) {
	key, _, skip, err := idx.keyFor(doc)
	if err != nil || skip {
		return
	}
	if ids, ok := idx.entries[key]; ok {
		delete(ids, idKey)
		if len(ids) == 0 {
			delete(idx.entries, key)
		}
	}
}

// conflict reports whether inserting doc would break uniqueness
func (idx *Index) conflict(doc domain.Document) error {
	if !idx.model.Unique {
		return nil
	}
	key, values, skip, err := idx.keyFor(doc)
	if err != nil || skip {
		return err
	}
	if len(idx.entries[key]) > 0 {
		return &domain.DuplicateKeyError{Index: idx.model.Name, Key: values}
	}
	return nil
}

// Manager holds the indexes of one collection. It does no locking of its
// own; the owning collection serializes access.
type Manager struct {
	indexes map[string]*Index
}

// NewManager returns a manager holding the implicit unique _id index
func NewManager() *Manager {
	return &Manager{
		indexes: map[string]*Index{
			domain.IDIndexName: newIndex(domain.IDIndex()),
		},
	}
}

// Build validates model against docs and registers it. Uniqueness
// violations among docs yield ErrIndexConflict and register nothing.
// Creating an index identical to an existing one returns its name.
func (m *Manager) Build(model domain.IndexModel, docs []domain.Document) (string, error) {
	model, err := model.Normalize()
	if err != nil {
		return "", err
	}
	if existing, ok := m.indexes[model.Name]; ok {
		if existing.model.SameSpec(model) {
			return model.Name, nil
		}
		return "", fmt.Errorf("%w: index %s already exists with different options", domain.ErrIndexConflict, model.Name)
	}
	for _, existing := range m.indexes {
		if existing.model.SameSpec(model) {
			return existing.model.Name, nil
		}
	}

	idx := newIndex(model)
	for _, doc := range docs {
		if err := idx.conflict(doc); err != nil {
			return "", fmt.Errorf("%w: cannot build unique index %s: %v", domain.ErrIndexConflict, model.Name, err)
		}
		if err := idx.add(idKey(doc), doc); err != nil {
			return "", err
		}
	}
	m.indexes[model.Name] = idx
	return model.Name, nil
}

// CheckInsert returns a *domain.DuplicateKeyError if doc collides with an
// entry of any unique index.
func (m *Manager) CheckInsert(doc domain.Document) error {
	for _, name := range m.names() {
		if err := m.indexes[name].conflict(doc); err != nil {
			return err
		}
	}
	return nil
}

// Add records doc in every index
func (m *Manager) Add(doc domain.Document) error {
	key := idKey(doc)
	for _, idx := range m.indexes {
		if err := idx.add(key, doc); err != nil {
			return err
		}
	}
	return nil
}

// Remove erases doc from every index
func (m *Manager) Remove(doc domain.Document) {
	key := idKey(doc)
	for _, idx := range m.indexes {
		idx.remove(key, doc)
	}
}

// Lookup returns the identity keys of documents whose field equals value,
// using a single-field index. ok is false when no usable index exists.
func (m *Manager) Lookup(field string, value domain.Value) (ids []string, ok bool) {
	for _, idx := range m.indexes {
		if len(idx.model.Keys) != 1 || idx.model.Keys[0].Field != field || idx.multikey || idx.model.Sparse {
			continue
		}
		key, err := EncodeKey(value)
		if err != nil {
			return nil, false
		}
		for id := range idx.entries[key] {
			ids = append(ids, id)
		}
		return ids, true
	}
	return nil, false
}

// List returns the index models sorted by name
func (m *Manager) List() []domain.IndexModel {
	names := m.names()
	out := make([]domain.IndexModel, len(names))
	for i, name := range names {
		out[i] = m.indexes[name].model
	}
	return out
}

// Drop removes a secondary index. The _id index cannot be dropped.
func (m *Manager) Drop(name string) error {
	if name == domain.IDIndexName {
		return fmt.Errorf("%w: cannot drop %s", domain.ErrBadIndex, name)
	}
	if _, ok := m.indexes[name]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrIndexNotFound, name)
	}
	delete(m.indexes, name)
	return nil
}

func (m *Manager) names() []string {
	names := make([]string, 0, len(m.indexes))
	for name := range m.indexes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IDKey returns the encoded identity of doc, used to key documents by _id
func IDKey(id domain.Value) string {
	key, _ := EncodeKey(id)
	return key
}

func idKey(doc domain.Document) string {
	id, _ := doc.ID()
	return IDKey(id)
}

// EncodeKey turns values into a canonical byte string. Values encode
// identically exactly when they compare equal, so 211 and 211.0 share a
// key while 2^53+1 and the double 2^53 do not.
func EncodeKey(values ...domain.Value) (string, error) {
	parts := make([]any, len(values))
	for i, v := range values {
		parts[i] = keyPart(v)
	}
	b, err := msgpack.Marshal(parts)
	if err != nil {
		return "", fmt.Errorf("failed to encode index key: %w", err)
	}
	return string(b), nil
}

func keyPart(v domain.Value) any {
	switch v.Kind() {
	case domain.KindBool:
		b, _ := v.AsBool()
		return []any{uint8(v.Kind()), b}
	case domain.KindInt64, domain.KindDouble:
		if i, ok := v.AsInt64(); ok {
			return []any{uint8(domain.KindInt64), i}
		}
		f, _ := v.AsDouble()
		if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
			return []any{uint8(domain.KindInt64), int64(f)}
		}
		return []any{uint8(domain.KindDouble), f}
	case domain.KindString:
		s, _ := v.AsString()
		return []any{uint8(v.Kind()), s}
	case domain.KindDateTime:
		t, _ := v.AsTime()
		// UnixNano overflows outside 1678..2262
		return []any{uint8(v.Kind()), t.Unix(), t.Nanosecond()}
	case domain.KindObjectID:
		id, _ := v.AsObjectID()
		return []any{uint8(v.Kind()), id[:]}
	case domain.KindDocument:
		d, _ := v.AsDocument()
		fields := make([]any, 0, 2*len(d))
		for _, e := range d {
			fields = append(fields, e.Key, keyPart(e.Value))
		}
		return []any{uint8(v.Kind()), fields}
	case domain.KindArray:
		arr, _ := v.AsArray()
		elems := make([]any, len(arr))
		for i, e := range arr {
			elems[i] = keyPart(e)
		}
		return []any{uint8(v.Kind()), elems}
	}
	return []any{uint8(domain.KindNull)}
}
