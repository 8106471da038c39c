package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// IDIndexName is the name of the unique index every collection holds on _id
const IDIndexName = "_id_"

// Sort and index key directions
const (
	Ascending  = 1
	Descending = -1
)

// IndexKey is one field of an index specification
type IndexKey struct {
	Field     string `json:"field" msgpack:"field"`
	Direction int    `json:"direction" msgpack:"direction"`
}

// IndexModel describes an index over one or more fields of a collection
type IndexModel struct {
	Name   string     `json:"name,omitempty" msgpack:"name"`
	Keys   []IndexKey `json:"keys" msgpack:"keys"`
	Unique bool       `json:"unique,omitempty" msgpack:"unique"`
	Sparse bool       `json:"sparse,omitempty" msgpack:"sparse"`
}

// IDIndex returns the model of the implicit _id index
func IDIndex() IndexModel {
	return IndexModel{
		Name:   IDIndexName,
		Keys:   []IndexKey{{Field: IDField, Direction: Ascending}},
		Unique: true,
	}
}

// DefaultName derives the conventional index name, e.g. "user_id_1" or
// "name_1_date_-1".
func (m IndexModel) DefaultName() string {
	parts := make([]string, 0, 2*len(m.Keys))
	for _, k := range m.Keys {
		parts = append(parts, k.Field, strconv.Itoa(k.Direction))
	}
	return strings.Join(parts, "_")
}

// Fields returns the indexed field paths in key order
func (m IndexModel) Fields() []string {
	fields := make([]string, len(m.Keys))
	for i, k := range m.Keys {
		fields[i] = k.Field
	}
	return fields
}

// Normalize validates m and fills in the default name
func (m IndexModel) Normalize() (IndexModel, error) {
	if len(m.Keys) == 0 {
		return m, fmt.Errorf("%w: at least one key is required", ErrBadIndex)
	}
	seen := make(map[string]struct{}, len(m.Keys))
	for _, k := range m.Keys {
		if k.Field == "" {
			return m, fmt.Errorf("%w: empty field name", ErrBadIndex)
		}
		if k.Direction != Ascending && k.Direction != Descending {
			return m, fmt.Errorf("%w: direction of %q must be 1 or -1, got %d", ErrBadIndex, k.Field, k.Direction)
		}
		if _, dup := seen[k.Field]; dup {
			return m, fmt.Errorf("%w: field %q appears twice", ErrBadIndex, k.Field)
		}
		seen[k.Field] = struct{}{}
	}
	if m.Name == "" {
		m.Name = m.DefaultName()
	}
	return m, nil
}

// SameSpec reports whether m and o index the same keys with the same options
func (m IndexModel) SameSpec(o IndexModel) bool {
	if m.Unique != o.Unique || m.Sparse != o.Sparse || len(m.Keys) != len(o.Keys) {
		return false
	}
	for i := range m.Keys {
		if m.Keys[i] != o.Keys[i] {
			return false
		}
	}
	return true
}
