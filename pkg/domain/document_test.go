package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocument_GetSetLookup(t *testing.T) {
	doc := NewDocument(
		E("name", "Fede"),
		E("address", map[string]any{"street": "Sideway", "number": 1633}),
		E("tags", []string{"a", "b"}),
	)

	v, ok := doc.Get("name")
	require.True(t, ok)
	assert.Equal(t, String("Fede"), v)

	v, ok = doc.Lookup("address.number")
	require.True(t, ok)
	assert.Equal(t, Int(1633), v)

	v, ok = doc.Lookup("tags.1")
	require.True(t, ok)
	assert.Equal(t, String("b"), v)

	_, ok = doc.Lookup("address.city")
	assert.False(t, ok)
	_, ok = doc.Lookup("name.first")
	assert.False(t, ok)

	doc.Set("name", String("John"))
	doc.Set("age", Int(30))
	assert.Equal(t, []string{"name", "address", "tags", "age"}, doc.Keys())

	doc.Prepend(IDField, Int(1))
	assert.Equal(t, IDField, doc.Keys()[0])
}

func TestDocument_CloneIsDeep(t *testing.T) {
	doc := NewDocument(E("nested", NewDocument(E("x", 1))))
	clone := doc.Clone()

	nested, _ := clone[0].Value.AsDocument()
	nested.Set("x", Int(2))

	orig, _ := doc.Lookup("nested.x")
	assert.Equal(t, Int(1), orig)
}

func TestDocument_Validate(t *testing.T) {
	assert.NoError(t, NewDocument(E("a", 1), E("b", "x")).Validate())
	assert.ErrorIs(t, Document{{Key: "", Value: Int(1)}}.Validate(), ErrInvalidDocument)
	assert.ErrorIs(t, NewDocument(E("a", 1), E("a", 2)).Validate(), ErrInvalidDocument)
	assert.ErrorIs(t, NewDocument(E(IDField, []int{1, 2})).Validate(), ErrInvalidDocument)
	assert.ErrorIs(t, NewDocument(E("n", Doc(Document{{Key: "", Value: Null()}}))).Validate(), ErrInvalidDocument)

	assert.ErrorIs(t, NewDocument(E("x", math.NaN())).Validate(), ErrInvalidDocument)
	assert.ErrorIs(t, NewDocument(E("x", math.Inf(1))).Validate(), ErrInvalidDocument)
	assert.ErrorIs(t, NewDocument(E("x", Array(Double(1), Double(math.Inf(-1))))).Validate(), ErrInvalidDocument)
	assert.NoError(t, NewDocument(E("x", math.MaxFloat64)).Validate())
}

func TestFromMap_SortsKeys(t *testing.T) {
	doc, err := FromMap(map[string]any{"b": 1, "a": "x", "c": true})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, doc.Keys())

	_, err = FromMap(map[string]any{"bad": struct{}{}})
	assert.ErrorIs(t, err, ErrInvalidDocument)
}

func TestCompare(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		a, b Value
		want int
	}{
		{"int vs double equal", Int(2), Double(2), 0},
		{"int less than double", Int(1), Double(1.5), -1},
		{"strings", String("Amy"), String("Ben"), -1},
		{"null before numbers", Null(), Int(-100), -1},
		{"numbers before strings", Int(999), String(""), -1},
		{"string before document", String("z"), Doc(nil), -1},
		{"bool false before true", Bool(false), Bool(true), -1},
		{"dates", Time(now), Time(now.Add(time.Second)), -1},
		{"arrays elementwise", Array(Int(1), Int(2)), Array(Int(1), Int(3)), -1},
		{"shorter array first", Array(Int(1)), Array(Int(1), Int(0)), -1},
		{"documents equal", Doc(NewDocument(E("a", 1))), Doc(NewDocument(E("a", 1.0))), 0},
		{"int above 2^53 vs nearest double", Int(1<<53 + 1), Double(1 << 53), 1},
		{"int at 2^53 equals double", Int(1 << 53), Double(1 << 53), 0},
		{"max int below 2^63 double", Int(math.MaxInt64), Double(math.MaxInt64), -1},
		{"min int equals -2^63 double", Int(math.MinInt64), Double(math.MinInt64), 0},
		{"negative fraction", Int(-3), Double(-2.5), -1},
		{"huge double", Int(math.MaxInt64), Double(1e300), -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compare(tt.a, tt.b))
			assert.Equal(t, -tt.want, Compare(tt.b, tt.a))
		})
	}
}

func TestErrorKinds(t *testing.T) {
	dup := &DuplicateKeyError{Index: "user_id_1", Key: NewDocument(E("user_id", 211))}
	assert.Equal(t, "DuplicateKey", ErrorKind(dup))
	assert.Equal(t, ErrDuplicateKey, ErrorForKind("DuplicateKey"))
	assert.Nil(t, ErrorForKind("Nope"))
	assert.Equal(t, KindInternal, ErrorKind(assert.AnError))

	bulk := &BulkWriteError{
		WriteErrors: []WriteError{{Index: 1, Err: dup}},
		InsertedIDs: []Value{Int(1)},
	}
	assert.ErrorIs(t, bulk, ErrDuplicateKey)
	var target *DuplicateKeyError
	require.ErrorAs(t, bulk, &target)
	assert.Equal(t, "user_id_1", target.Index)
	assert.Contains(t, bulk.Error(), "1 inserted, 1 failed")
}
