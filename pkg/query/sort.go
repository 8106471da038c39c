package query

import (
	"sort"

	"github.com/fedecaccia/mongodb/pkg/domain"
)

// SortDocuments orders docs in place by spec. The sort is stable, so
// documents with equal keys keep their collection order. Missing fields sort
// as null.
func SortDocuments(docs []domain.Document, spec domain.SortSpec) {
	if len(spec) == 0 {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		return compareBy(docs[i], docs[j], spec) < 0
	})
}

func compareBy(a, b domain.Document, spec domain.SortSpec) int {
	for _, f := range spec {
		va, _ := a.Lookup(f.Field)
		vb, _ := b.Lookup(f.Field)
		if c := domain.Compare(va, vb); c != 0 {
			if f.Direction == domain.Descending {
				return -c
			}
			return c
		}
	}
	return 0
}
