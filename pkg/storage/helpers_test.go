package storage

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fedecaccia/mongodb/pkg/domain"
	"github.com/fedecaccia/mongodb/pkg/query"
)

func mustMatcher(t *testing.T, filter domain.Document) *query.Matcher {
	t.Helper()
	m, err := query.Compile(filter)
	require.NoError(t, err)
	return m
}
