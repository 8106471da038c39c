package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

// Documents travel as JSON objects with field order preserved. Types JSON
// cannot express use wrapper objects: {"$oid": "<hex>"} for ObjectIDs and
// {"$date": "<RFC3339Nano>"} for timestamps. Doubles always carry a decimal
// point or exponent so that they decode back as doubles.

// MarshalJSON encodes d as an ordered JSON object
func (d Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeDocument(&buf, d); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object keeping field order. JSON null decodes
// to a nil document.
func (d *Document) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return err
	}
	switch v.kind {
	case KindNull:
		*d = nil
	case KindDocument:
		*d = v.doc
	default:
		return fmt.Errorf("%w: expected a JSON object, got %s", ErrInvalidDocument, v.kind)
	}
	return nil
}

// MarshalJSON encodes v in extended JSON
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeValue(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes extended JSON into v
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	out, err := decodeValue(dec)
	if err != nil {
		return err
	}
	*v = out
	return nil
}

// DecodeDocument reads the next JSON object from dec. dec must have
// UseNumber enabled for integers to keep their kind.
func DecodeDocument(dec *json.Decoder) (Document, error) {
	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	doc, ok := v.AsDocument()
	if !ok {
		return nil, fmt.Errorf("%w: expected a JSON object, got %s", ErrInvalidDocument, v.kind)
	}
	return doc, nil
}

func writeDocument(buf *bytes.Buffer, d Document) error {
	buf.WriteByte('{')
	for i, e := range d {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeString(buf, e.Key)
		buf.WriteByte(':')
		if err := writeValue(buf, e.Value); err != nil {
			return fmt.Errorf("field %q: %w", e.Key, err)
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeValue(buf *bytes.Buffer, v Value) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.b))
	case KindInt64:
		buf.WriteString(strconv.FormatInt(v.i, 10))
	case KindDouble:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return fmt.Errorf("%w: %v cannot be encoded as JSON", ErrInvalidDocument, v.f)
		}
		s := strconv.FormatFloat(v.f, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		buf.WriteString(s)
	case KindString:
		writeString(buf, v.s)
	case KindDateTime:
		buf.WriteString(`{"$date":`)
		writeString(buf, v.t.Format(time.RFC3339Nano))
		buf.WriteByte('}')
	case KindObjectID:
		buf.WriteString(`{"$oid":"`)
		buf.WriteString(v.oid.Hex())
		buf.WriteString(`"}`)
	case KindDocument:
		return writeDocument(buf, v.doc)
	case KindArray:
		buf.WriteByte('[')
		for i, e := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeValue(buf, e); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
		}
		buf.WriteByte(']')
	default:
		return fmt.Errorf("%w: unknown kind %s", ErrInvalidDocument, v.kind)
	}
	return nil
}

func writeString(buf *bytes.Buffer, s string) {
	b, _ := json.Marshal(s)
	buf.Write(b)
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return Value{}, io.ErrUnexpectedEOF
		}
		return Value{}, err
	}
	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case json.Number:
		return parseNumber(t)
	case float64:
		return Double(t), nil
	case json.Delim:
		switch t {
		case '{':
			doc, err := decodeObject(dec)
			if err != nil {
				return Value{}, err
			}
			return unwrapExtended(doc)
		case '[':
			return decodeArray(dec)
		}
	}
	return Value{}, fmt.Errorf("%w: unexpected token %v", ErrInvalidDocument, tok)
}

func decodeObject(dec *json.Decoder) (Document, error) {
	doc := Document{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: object key %v is not a string", ErrInvalidDocument, tok)
		}
		v, err := decodeValue(dec)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		doc = append(doc, Element{Key: key, Value: v})
	}
	// closing '}'
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return doc, nil
}

func decodeArray(dec *json.Decoder) (Value, error) {
	arr := []Value{}
	for dec.More() {
		v, err := decodeValue(dec)
		if err != nil {
			return Value{}, fmt.Errorf("element %d: %w", len(arr), err)
		}
		arr = append(arr, v)
	}
	if _, err := dec.Token(); err != nil {
		return Value{}, err
	}
	return Array(arr...), nil
}

func unwrapExtended(doc Document) (Value, error) {
	if len(doc) != 1 {
		return Doc(doc), nil
	}
	s, isString := doc[0].Value.AsString()
	switch doc[0].Key {
	case "$oid":
		if !isString {
			break
		}
		id, err := ObjectIDFromHex(s)
		if err != nil {
			return Value{}, err
		}
		return OID(id), nil
	case "$date":
		if !isString {
			break
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return Value{}, fmt.Errorf("%w: $date %q: %v", ErrInvalidDocument, s, err)
		}
		return Time(t), nil
	}
	return Doc(doc), nil
}

func parseNumber(n json.Number) (Value, error) {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return Int(i), nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Value{}, fmt.Errorf("%w: number %s: %v", ErrInvalidDocument, s, err)
	}
	return Double(f), nil
}
