package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedecaccia/mongodb/pkg/domain"
)

func doc(elems ...domain.Element) domain.Document { return domain.NewDocument(elems...) }

func ops(elems ...domain.Element) domain.Document { return domain.NewDocument(elems...) }

func TestMatcher_Matches(t *testing.T) {
	now := time.Now()
	fede := doc(
		domain.E("name", "Fede"),
		domain.E("age", 30),
		domain.E("score", 7.5),
		domain.E("date", now.Add(-time.Hour)),
		domain.E("address", doc(domain.E("city", "Rosario"))),
		domain.E("tags", []string{"admin", "ops"}),
	)

	tests := []struct {
		name   string
		filter domain.Document
		want   bool
	}{
		{"empty filter", nil, true},
		{"implicit equality", doc(domain.E("name", "Fede")), true},
		{"equality is case sensitive", doc(domain.E("name", "fede")), false},
		{"int equals double", doc(domain.E("age", 30.0)), true},
		{"absent field never matches", doc(domain.E("missing", nil)), false},
		{"dotted path", doc(domain.E("address.city", "Rosario")), true},
		{"array element equality", doc(domain.E("tags", "ops")), true},
		{"lt", doc(domain.E("age", ops(domain.E("$lt", 31)))), true},
		{"lt boundary", doc(domain.E("age", ops(domain.E("$lt", 30)))), false},
		{"lte boundary", doc(domain.E("age", ops(domain.E("$lte", 30)))), true},
		{"gt double", doc(domain.E("score", ops(domain.E("$gt", 7)))), true},
		{"gte", doc(domain.E("score", ops(domain.E("$gte", 7.6)))), false},
		{"range conjunction", doc(domain.E("age", ops(domain.E("$gt", 18), domain.E("$lt", 65)))), true},
		{"date lt now", doc(domain.E("date", ops(domain.E("$lt", now)))), true},
		{"range across types never matches", doc(domain.E("name", ops(domain.E("$gt", 1)))), false},
		{"range on absent field", doc(domain.E("missing", ops(domain.E("$lt", 1)))), false},
		{"ne on absent field", doc(domain.E("missing", ops(domain.E("$ne", 1)))), true},
		{"ne on present field", doc(domain.E("name", ops(domain.E("$ne", "Fede")))), false},
		{"in", doc(domain.E("name", ops(domain.E("$in", []string{"Amy", "Fede"})))), true},
		{"nin", doc(domain.E("name", ops(domain.E("$nin", []string{"Amy", "Fede"})))), false},
		{"exists true", doc(domain.E("address", ops(domain.E("$exists", true)))), true},
		{"exists false", doc(domain.E("missing", ops(domain.E("$exists", false)))), true},
		{"all clauses must match", doc(domain.E("name", "Fede"), domain.E("age", 31)), false},
		{"nested document equality", doc(domain.E("address", doc(domain.E("city", "Rosario")))), true},
		{"or any branch", doc(domain.E("$or", []any{doc(domain.E("name", "Amy")), doc(domain.E("age", 30))})), true},
		{"or no branch", doc(domain.E("$or", []any{doc(domain.E("name", "Amy")), doc(domain.E("age", 31))})), false},
		{"and every branch", doc(domain.E("$and", []any{doc(domain.E("age", ops(domain.E("$gt", 18)))), doc(domain.E("tags", "ops"))})), true},
		{"and one branch fails", doc(domain.E("$and", []any{doc(domain.E("age", 30)), doc(domain.E("name", "Amy"))})), false},
		{"nor no branch", doc(domain.E("$nor", []any{doc(domain.E("name", "Amy")), doc(domain.E("missing", ops(domain.E("$exists", true))))})), true},
		{"nor one branch", doc(domain.E("$nor", []any{doc(domain.E("name", "Fede"))})), false},
		{"or alongside field clause", doc(domain.E("name", "Fede"), domain.E("$or", []any{doc(domain.E("age", 1)), doc(domain.E("score", 7.5))})), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Compile(tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Matches(fede))
			// deterministic for the same pair
			assert.Equal(t, tt.want, m.Matches(fede))
		})
	}
}

func TestCompile_Errors(t *testing.T) {
	bad := []domain.Document{
		doc(domain.E("age", ops(domain.E("$regex", "x")))),
		doc(domain.E("age", ops(domain.E("$in", 3)))),
		doc(domain.E("$where", "1")),
		doc(domain.E("$or", doc(domain.E("a", 1)))),
		doc(domain.E("$and", []any{})),
		doc(domain.E("$nor", []any{"a"})),
		doc(domain.E("$or", []any{doc(domain.E("a", ops(domain.E("$regex", "x"))))})),
		{{Key: "", Value: domain.Int(1)}},
	}
	for _, f := range bad {
		_, err := Compile(f)
		assert.ErrorIs(t, err, domain.ErrBadFilter, f.String())
	}
}

func TestMatcher_Equalities(t *testing.T) {
	m := MustCompile(doc(
		domain.E("user_id", 211),
		domain.E("name", ops(domain.E("$eq", "Luke"))),
		domain.E("age", ops(domain.E("$gt", 3))),
		domain.E("address", doc(domain.E("city", "x"))),
	))
	assert.Equal(t, []Equality{
		{Field: "user_id", Value: domain.Int(211)},
		{Field: "name", Value: domain.String("Luke")},
	}, m.Equalities())

	logical := MustCompile(doc(
		domain.E("$and", []any{doc(domain.E("user_id", 211)), doc(domain.E("age", ops(domain.E("$lt", 9))))}),
		domain.E("$or", []any{doc(domain.E("name", "Luke")), doc(domain.E("name", "Tommy"))}),
	))
	assert.Equal(t, []Equality{{Field: "user_id", Value: domain.Int(211)}}, logical.Equalities())
}

func TestSortDocuments(t *testing.T) {
	docs := []domain.Document{
		doc(domain.E("name", "Peter"), domain.E("n", 1)),
		doc(domain.E("name", "Amy"), domain.E("n", 2)),
		doc(domain.E("n", 3)),
		doc(domain.E("name", "Amy"), domain.E("n", 4)),
	}

	SortDocuments(docs, domain.SortSpec{{Field: "name", Direction: domain.Ascending}})
	order := func() []int64 {
		out := make([]int64, len(docs))
		for i, d := range docs {
			v, _ := d.Get("n")
			out[i], _ = v.AsInt64()
		}
		return out
	}
	assert.Equal(t, []int64{3, 2, 4, 1}, order(), "missing sorts first, ties keep order")

	SortDocuments(docs, domain.SortSpec{
		{Field: "name", Direction: domain.Descending},
		{Field: "n", Direction: domain.Descending},
	})
	assert.Equal(t, []int64{1, 4, 2, 3}, order())
}
