package domain

import (
	"bytes"
	"math"
	"strings"
)

// bracket returns the canonical sort rank of a kind. Int64 and Double share
// a bracket so that they compare numerically.
func bracket(k Kind) int {
	switch k {
	case KindNull:
		return 1
	case KindInt64, KindDouble:
		return 2
	case KindString:
		return 3
	case KindDocument:
		return 4
	case KindArray:
		return 5
	case KindObjectID:
		return 7
	case KindBool:
		return 8
	case KindDateTime:
		return 9
	}
	return 100
}

// SameBracket reports whether a and b are ordered against each other by
// value rather than by type.
func SameBracket(a, b Value) bool {
	return bracket(a.kind) == bracket(b.kind)
}

// Compare orders two values: -1 if a < b, 0 if equal, +1 if a > b. Values of
// different kinds are ordered by type bracket:
// null < numbers < string < document < array < objectId < bool < datetime.
func Compare(a, b Value) int {
	ba, bb := bracket(a.kind), bracket(b.kind)
	if ba != bb {
		return cmpInt(ba, bb)
	}
	switch a.kind {
	case KindNull:
		return 0
	case KindInt64, KindDouble:
		return compareNumbers(a, b)
	case KindString:
		return strings.Compare(a.s, b.s)
	case KindDocument:
		return compareDocuments(a.doc, b.doc)
	case KindArray:
		return compareArrays(a.arr, b.arr)
	case KindObjectID:
		return bytes.Compare(a.oid[:], b.oid[:])
	case KindBool:
		switch {
		case a.b == b.b:
			return 0
		case !a.b:
			return -1
		}
		return 1
	case KindDateTime:
		return a.t.Compare(b.t)
	}
	return 0
}

// Equal reports whether v and o compare equal
func (v Value) Equal(o Value) bool {
	return Compare(v, o) == 0
}

func compareNumbers(a, b Value) int {
	switch {
	case a.kind == KindInt64 && b.kind == KindInt64:
		return cmpInt64(a.i, b.i)
	case a.kind == KindInt64:
		return compareIntDouble(a.i, b.f)
	case b.kind == KindInt64:
		return -compareIntDouble(b.i, a.f)
	}
	x, y := a.f, b.f
	// NaN sorts below every other number and equal to itself.
	switch xn, yn := math.IsNaN(x), math.IsNaN(y); {
	case xn && yn:
		return 0
	case xn:
		return -1
	case yn:
		return 1
	}
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

// compareIntDouble compares exactly, without rounding i to a float64
func compareIntDouble(i int64, f float64) int {
	switch {
	case math.IsNaN(f):
		return 1
	case f >= math.MaxInt64: // 2^63 as a float64
		return -1
	case f < math.MinInt64:
		return 1
	}
	whole := math.Trunc(f)
	if c := cmpInt64(i, int64(whole)); c != 0 {
		return c
	}
	switch frac := f - whole; {
	case frac > 0:
		return -1
	case frac < 0:
		return 1
	}
	return 0
}

func compareDocuments(a, b Document) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if c := cmpInt(bracket(a[i].Value.kind), bracket(b[i].Value.kind)); c != 0 {
			return c
		}
		if c := strings.Compare(a[i].Key, b[i].Key); c != 0 {
			return c
		}
		if c := Compare(a[i].Value, b[i].Value); c != 0 {
			return c
		}
	}
	return cmpInt(len(a), len(b))
}

func compareArrays(a, b []Value) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if c := Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return cmpInt(len(a), len(b))
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
