// Package query evaluates filter documents against stored documents.
package query

import (
	"fmt"
	"strings"

	"github.com/fedecaccia/mongodb/pkg/domain"
)

type opCode int

const (
	opEq opCode = iota
	opNe
	opLt
	opLte
	opGt
	opGte
	opIn
	opNin
	opExists
)

var operators = map[string]opCode{
	"$eq":     opEq,
	"$ne":     opNe,
	"$lt":     opLt,
	"$lte":    opLte,
	"$gt":     opGt,
	"$gte":    opGte,
	"$in":     opIn,
	"$nin":    opNin,
	"$exists": opExists,
}

type predicate struct {
	op      opCode
	operand domain.Value
	list    []domain.Value
}

type clause struct {
	path  string
	preds []predicate
}

type logicalOp int

const (
	logicalAnd logicalOp = iota
	logicalOr
	logicalNor
)

var logicalOperators = map[string]logicalOp{
	"$and": logicalAnd,
	"$or":  logicalOr,
	"$nor": logicalNor,
}

// group is a top-level $and, $or or $nor over nested filters
type group struct {
	op   logicalOp
	subs []*Matcher
}

// Matcher is a compiled filter. It holds no mutable state and is safe to
// share between goroutines.
type Matcher struct {
	clauses []clause
	groups  []group
}

// Equality is a top-level field constrained to a single value
type Equality struct {
	Field string
	Value domain.Value
}

// Compile parses a filter document. Each field maps either to a literal,
// meaning equality, or to a document of operators such as {"$lt": 10}.
// Top-level $and, $or and $nor take a non-empty array of filters.
// A nil or empty filter matches every document.
func Compile(filter domain.Document) (*Matcher, error) {
	m := &Matcher{clauses: make([]clause, 0, len(filter))}
	for _, e := range filter {
		if e.Key == "" {
			return nil, fmt.Errorf("%w: empty field name", domain.ErrBadFilter)
		}
		if strings.HasPrefix(e.Key, "$") {
			g, err := compileGroup(e.Key, e.Value)
			if err != nil {
				return nil, err
			}
			m.groups = append(m.groups, g)
			continue
		}
		preds, err := compileField(e.Key, e.Value)
		if err != nil {
			return nil, err
		}
		m.clauses = append(m.clauses, clause{path: e.Key, preds: preds})
	}
	return m, nil
}

func compileGroup(name string, v domain.Value) (group, error) {
	op, known := logicalOperators[name]
	if !known {
		return group{}, fmt.Errorf("%w: unsupported top-level operator %s", domain.ErrBadFilter, name)
	}
	filters, ok := v.AsArray()
	if !ok || len(filters) == 0 {
		return group{}, fmt.Errorf("%w: %s needs a non-empty array of filters", domain.ErrBadFilter, name)
	}
	g := group{op: op, subs: make([]*Matcher, len(filters))}
	for i, f := range filters {
		sub, isDoc := f.AsDocument()
		if !isDoc {
			return group{}, fmt.Errorf("%w: %s element %d is not a document", domain.ErrBadFilter, name, i)
		}
		m, err := Compile(sub)
		if err != nil {
			return group{}, fmt.Errorf("%s element %d: %w", name, i, err)
		}
		g.subs[i] = m
	}
	return g, nil
}

func (g group) matches(doc domain.Document) bool {
	switch g.op {
	case logicalAnd:
		for _, m := range g.subs {
			if !m.Matches(doc) {
				return false
			}
		}
		return true
	case logicalOr:
		for _, m := range g.subs {
			if m.Matches(doc) {
				return true
			}
		}
		return false
	}
	for _, m := range g.subs {
		if m.Matches(doc) {
			return false
		}
	}
	return true
}

// MustCompile is Compile for filters known to be valid
func MustCompile(filter domain.Document) *Matcher {
	m, err := Compile(filter)
	if err != nil {
		panic(err)
	}
	return m
}

func compileField(path string, v domain.Value) ([]predicate, error) {
	ops, ok := v.AsDocument()
	if !ok || len(ops) == 0 || !strings.HasPrefix(ops[0].Key, "$") {
		return []predicate{{op: opEq, operand: v}}, nil
	}
	preds := make([]predicate, 0, len(ops))
	for _, e := range ops {
		code, known := operators[e.Key]
		if !known {
			return nil, fmt.Errorf("%w: unknown operator %s on %q", domain.ErrBadFilter, e.Key, path)
		}
		p := predicate{op: code, operand: e.Value}
		if code == opIn || code == opNin {
			list, isArray := e.Value.AsArray()
			if !isArray {
				return nil, fmt.Errorf("%w: %s on %q needs an array", domain.ErrBadFilter, e.Key, path)
			}
			p.list = list
		}
		preds = append(preds, p)
	}
	return preds, nil
}

// Matches reports whether doc satisfies every clause of the filter
func (m *Matcher) Matches(doc domain.Document) bool {
	for _, c := range m.clauses {
		v, present := doc.Lookup(c.path)
		for _, p := range c.preds {
			if !p.eval(v, present) {
				return false
			}
		}
	}
	for _, g := range m.groups {
		if !g.matches(doc) {
			return false
		}
	}
	return true
}

// Equalities lists the clauses that pin a field to one scalar value. A
// storage engine may answer them from an index before running Matches.
func (m *Matcher) Equalities() []Equality {
	var out []Equality
	for _, c := range m.clauses {
		for _, p := range c.preds {
			if p.op != opEq {
				continue
			}
			switch p.operand.Kind() {
			case domain.KindDocument, domain.KindArray:
				continue
			}
			out = append(out, Equality{Field: c.path, Value: p.operand})
		}
	}
	// every branch of an $and must hold, so its equalities do too
	for _, g := range m.groups {
		if g.op != logicalAnd {
			continue
		}
		for _, sub := range g.subs {
			out = append(out, sub.Equalities()...)
		}
	}
	return out
}

func (p predicate) eval(v domain.Value, present bool) bool {
	switch p.op {
	case opEq:
		return present && equals(v, p.operand)
	case opNe:
		return !present || !equals(v, p.operand)
	case opIn:
		return present && inList(v, p.list)
	case opNin:
		return !present || !inList(v, p.list)
	case opExists:
		return present == truthy(p.operand)
	}
	if !present {
		return false
	}
	return anyElement(v, func(x domain.Value) bool {
		if !domain.SameBracket(x, p.operand) {
			return false
		}
		c := domain.Compare(x, p.operand)
		switch p.op {
		case opLt:
			return c < 0
		case opLte:
			return c <= 0
		case opGt:
			return c > 0
		case opGte:
			return c >= 0
		}
		return false
	})
}

// equals matches the value itself or, for arrays, any of its elements
func equals(v, operand domain.Value) bool {
	if v.Equal(operand) {
		return true
	}
	if arr, ok := v.AsArray(); ok {
		for _, x := range arr {
			if x.Equal(operand) {
				return true
			}
		}
	}
	return false
}

func inList(v domain.Value, list []domain.Value) bool {
	for _, candidate := range list {
		if equals(v, candidate) {
			return true
		}
	}
	return false
}

func anyElement(v domain.Value, fn func(domain.Value) bool) bool {
	if arr, ok := v.AsArray(); ok {
		for _, x := range arr {
			if fn(x) {
				return true
			}
		}
		return false
	}
	return fn(v)
}

func truthy(v domain.Value) bool {
	switch v.Kind() {
	case domain.KindNull:
		return false
	case domain.KindBool:
		b, _ := v.AsBool()
		return b
	case domain.KindInt64, domain.KindDouble:
		n, _ := v.AsNumber()
		return n != 0
	}
	return true
}
