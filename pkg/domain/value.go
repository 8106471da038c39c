package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind identifies which variant a Value holds
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt64
	KindDouble
	KindString
	KindDateTime
	KindObjectID
	KindDocument
	KindArray
)

var kindNames = [...]string{
	KindNull:     "null",
	KindBool:     "bool",
	KindInt64:    "int64",
	KindDouble:   "double",
	KindString:   "string",
	KindDateTime: "datetime",
	KindObjectID: "objectId",
	KindDocument: "document",
	KindArray:    "array",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is a tagged union over the field types a Document can hold.
// The zero Value is Null.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	t    time.Time
	oid  ObjectID
	doc  Document
	arr  []Value
}

func Null() Value             { return Value{} }
func Bool(b bool) Value       { return Value{kind: KindBool, b: b} }
func Int(i int64) Value       { return Value{kind: KindInt64, i: i} }
func Double(f float64) Value  { return Value{kind: KindDouble, f: f} }
func String(s string) Value   { return Value{kind: KindString, s: s} }
func OID(id ObjectID) Value   { return Value{kind: KindObjectID, oid: id} }
func Doc(d Document) Value    { return Value{kind: KindDocument, doc: d} }
func Array(vs ...Value) Value { return Value{kind: KindArray, arr: vs} }

// Time stores t in UTC with the monotonic clock reading stripped, so that
// values round-trip through encoding unchanged.
func Time(t time.Time) Value {
	return Value{kind: KindDateTime, t: t.Round(0).UTC()}
}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

func (v Value) AsInt64() (int64, bool) { return v.i, v.kind == KindInt64 }

func (v Value) AsDouble() (float64, bool) { return v.f, v.kind == KindDouble }

func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

func (v Value) AsTime() (time.Time, bool) { return v.t, v.kind == KindDateTime }

func (v Value) AsObjectID() (ObjectID, bool) { return v.oid, v.kind == KindObjectID }

func (v Value) AsDocument() (Document, bool) { return v.doc, v.kind == KindDocument }

func (v Value) AsArray() ([]Value, bool) { return v.arr, v.kind == KindArray }

// AsNumber returns the value as float64 for either numeric kind
func (v Value) AsNumber() (float64, bool) {
	switch v.kind {
	case KindInt64:
		return float64(v.i), true
	case KindDouble:
		return v.f, true
	}
	return 0, false
}

// IsNumber reports whether v is Int64 or Double
func (v Value) IsNumber() bool {
	return v.kind == KindInt64 || v.kind == KindDouble
}

// Clone returns a deep copy of v.
func (v Value) Clone() Value {
	switch v.kind {
	case KindDocument:
		v.doc = v.doc.Clone()
	case KindArray:
		arr := make([]Value, len(v.arr))
		for i, e := range v.arr {
			arr[i] = e.Clone()
		}
		v.arr = arr
	}
	return v
}

// Interface converts v back into a plain Go value: nil, bool, int64,
// float64, string, time.Time, ObjectID, map[string]any or []any.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt64:
		return v.i
	case KindDouble:
		return v.f
	case KindString:
		return v.s
	case KindDateTime:
		return v.t
	case KindObjectID:
		return v.oid
	case KindDocument:
		return v.doc.Map()
	case KindArray:
		out := make([]any, len(v.arr))
		for i, e := range v.arr {
			out[i] = e.Interface()
		}
		return out
	}
	return nil
}

// String renders v in a shell-like notation for logs and error messages.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt64:
		return strconv.FormatInt(v.i, 10)
	case KindDouble:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return strconv.Quote(v.s)
	case KindDateTime:
		return "ISODate(" + strconv.Quote(v.t.Format(time.RFC3339Nano)) + ")"
	case KindObjectID:
		return "ObjectId(" + strconv.Quote(v.oid.Hex()) + ")"
	case KindDocument:
		return v.doc.String()
	case KindArray:
		parts := make([]string, len(v.arr))
		for i, e := range v.arr {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return v.kind.String()
}

// ValueOf converts a Go value into a Value. Supported inputs are nil, Value,
// bool, all integer and float kinds, string, time.Time, ObjectID, Document,
// map[string]any and slices of any of these.
func ValueOf(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(int64(t)), nil
	case int8:
		return Int(int64(t)), nil
	case int16:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint:
		return fromUint(uint64(t))
	case uint8:
		return Int(int64(t)), nil
	case uint16:
		return Int(int64(t)), nil
	case uint32:
		return Int(int64(t)), nil
	case uint64:
		return fromUint(t)
	case float32:
		return Double(float64(t)), nil
	case float64:
		return Double(t), nil
	case string:
		return String(t), nil
	case time.Time:
		return Time(t), nil
	case ObjectID:
		return OID(t), nil
	case Document:
		return Doc(t), nil
	case map[string]any:
		d, err := FromMap(t)
		if err != nil {
			return Value{}, err
		}
		return Doc(d), nil
	case []Value:
		return Array(t...), nil
	case []any:
		arr := make([]Value, len(t))
		for i, e := range t {
			v, err := ValueOf(e)
			if err != nil {
				return Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			arr[i] = v
		}
		return Array(arr...), nil
	case []string:
		arr := make([]Value, len(t))
		for i, e := range t {
			arr[i] = String(e)
		}
		return Array(arr...), nil
	case []int:
		arr := make([]Value, len(t))
		for i, e := range t {
			arr[i] = Int(int64(e))
		}
		return Array(arr...), nil
	}
	return Value{}, fmt.Errorf("%w: unsupported type %T", ErrInvalidDocument, x)
}

func fromUint(u uint64) (Value, error) {
	if u > math.MaxInt64 {
		return Value{}, fmt.Errorf("%w: %d overflows int64", ErrInvalidDocument, u)
	}
	return Int(int64(u)), nil
}

// MustValue is ValueOf for literals known to be valid; it panics otherwise.
func MustValue(x any) Value {
	v, err := ValueOf(x)
	if err != nil {
		panic(err)
	}
	return v
}
