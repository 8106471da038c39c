// Package identity assigns ObjectID identities to documents that lack one.
package identity

import (
	"encoding/binary"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/fedecaccia/mongodb/pkg/domain"
)

// Generator produces ObjectIDs from the current time, a random per-generator
// discriminator and an incrementing counter. It is safe for concurrent use.
type Generator struct {
	discriminator [5]byte
	counter       atomic.Uint32
	now           func() time.Time
}

// New returns a generator seeded from a random UUID
func New() *Generator {
	return newWithClock(time.Now)
}

func newWithClock(now func() time.Time) *Generator {
	seed := uuid.New()
	g := &Generator{now: now}
	copy(g.discriminator[:], seed[0:5])
	// bytes 10..15 of a v4 UUID are fully random
	g.counter.Store(binary.BigEndian.Uint32(seed[10:14]) & 0xFFFFFF)
	return g
}

// Next returns a fresh ObjectID
func (g *Generator) Next() domain.ObjectID {
	var id domain.ObjectID
	binary.BigEndian.PutUint32(id[0:4], uint32(g.now().Unix()))
	copy(id[4:9], g.discriminator[:])
	c := g.counter.Add(1)
	id[9] = byte(c >> 16)
	id[10] = byte(c >> 8)
	id[11] = byte(c)
	return id
}

// Assign puts a generated _id at the front of doc when it has none, and
// returns the document's identity either way.
func (g *Generator) Assign(doc *domain.Document) domain.Value {
	if id, ok := doc.ID(); ok {
		return id
	}
	id := domain.OID(g.Next())
	doc.Prepend(domain.IDField, id)
	return id
}
