package storage

import (
	"context"
	"sort"

	"github.com/fedecaccia/mongodb/pkg/domain"
	"github.com/fedecaccia/mongodb/pkg/indexing"
	"github.com/fedecaccia/mongodb/pkg/query"
)

// entry is a stored document. Stored documents are never mutated; seq
// records insertion order.
type entry struct {
	seq uint64
	doc domain.Document
}

type collection struct {
	CollectionLock
	name    string
	docs    []*entry
	byID    map[string]*entry
	indexes *indexing.Manager
	nextSeq uint64
}

func newCollection(name string) *collection {
	return &collection{
		name:    name,
		byID:    make(map[string]*entry),
		indexes: indexing.NewManager(),
	}
}

// check validates doc against every unique index without storing it
func (c *collection) check(doc domain.Document) error {
	return c.indexes.CheckInsert(doc)
}

// apply stores a document that already passed check
func (c *collection) apply(doc domain.Document) error {
	if err := c.indexes.Add(doc); err != nil {
		return err
	}
	id, _ := doc.ID()
	e := &entry{seq: c.nextSeq, doc: doc}
	c.nextSeq++
	c.docs = append(c.docs, e)
	c.byID[indexing.IDKey(id)] = e
	return nil
}

// insert is check followed by apply
func (c *collection) insert(doc domain.Document) error {
	if err := c.check(doc); err != nil {
		return err
	}
	return c.apply(doc)
}

// remove deletes the documents with the given identity keys
func (c *collection) remove(idKeys map[string]struct{}) {
	if len(idKeys) == 0 {
		return
	}
	kept := c.docs[:0]
	for _, e := range c.docs {
		id, _ := e.doc.ID()
		key := indexing.IDKey(id)
		if _, drop := idKeys[key]; drop {
			c.indexes.Remove(e.doc)
			delete(c.byID, key)
			continue
		}
		kept = append(kept, e)
	}
	// clear the tail so removed documents can be collected
	for i := len(kept); i < len(c.docs); i++ {
		c.docs[i] = nil
	}
	c.docs = kept
}

// documents returns the stored documents in insertion order
func (c *collection) documents() []domain.Document {
	out := make([]domain.Document, len(c.docs))
	for i, e := range c.docs {
		out[i] = e.doc
	}
	return out
}

// candidates returns the entries that may match m, in insertion order. An
// equality on a single-field index narrows the scan to the index hits.
func (c *collection) candidates(m *query.Matcher) []*entry {
	var best []string
	found := false
	for _, eq := range m.Equalities() {
		ids, ok := c.indexes.Lookup(eq.Field, eq.Value)
		if !ok {
			continue
		}
		if !found || len(ids) < len(best) {
			best, found = ids, true
		}
	}
	if !found {
		return c.docs
	}
	out := make([]*entry, 0, len(best))
	for _, id := range best {
		if e, ok := c.byID[id]; ok {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// match collects the stored documents satisfying m. The returned documents
// are shared with the collection and must be cloned before leaving the
// engine.
func (c *collection) match(ctx context.Context, m *query.Matcher) ([]*entry, error) {
	var out []*entry
	for i, e := range c.candidates(m) {
		if i%scanCheckEvery == 0 {
			if err := checkContext(ctx); err != nil {
				return nil, err
			}
		}
		if m.Matches(e.doc) {
			out = append(out, e)
		}
	}
	return out, nil
}
