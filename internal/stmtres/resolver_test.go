package stmtres_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proofrock/sqliterg/internal/apperr"
	"github.com/proofrock/sqliterg/internal/domain"
	"github.com/proofrock/sqliterg/internal/stmtres"
)

func newMap(t *testing.T, stmts ...domain.StoredStatement) *stmtres.Map {
	t.Helper()
	m, err := stmtres.NewMap(stmts)
	require.NoError(t, err)
	return m
}

func TestNewMapRejectsDuplicateIDs(t *testing.T) {
	_, err := stmtres.NewMap([]domain.StoredStatement{
		{ID: "Q", SQL: "SELECT 1"},
		{ID: "Q", SQL: "SELECT 2"},
	})
	require.Error(t, err)
}

func TestResolveByID(t *testing.T) {
	m := newMap(t, domain.StoredStatement{ID: "Q", SQL: "SELECT 1"})

	sql, err := m.Resolve("^Q", false)
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", sql)
}

func TestResolveUnknownID(t *testing.T) {
	m := newMap(t)
	_, err := m.Resolve("^missing", false)
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.As(err).Kind)
}

func TestResolveLiteralTextAllowedByDefault(t *testing.T) {
	m := newMap(t)
	sql, err := m.Resolve("SELECT 1", false)
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", sql)
}

func TestResolveLiteralTextForbiddenWhenUseOnlyStored(t *testing.T) {
	m := newMap(t)
	_, err := m.Resolve("SELECT 1", true)
	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.As(err).Kind)
}

func TestResolveAllFailsFastOnUnknownID(t *testing.T) {
	m := newMap(t, domain.StoredStatement{ID: "A", SQL: "SELECT 1"})
	_, err := m.ResolveAll([]string{"^A", "^B"})
	require.Error(t, err)
}

func TestResolveAllResolvesEveryEntry(t *testing.T) {
	m := newMap(t,
		domain.StoredStatement{ID: "A", SQL: "SELECT 1"},
		domain.StoredStatement{ID: "B", SQL: "SELECT 2"},
	)
	out, err := m.ResolveAll([]string{"^A", "^B", "DELETE FROM T"})
	require.NoError(t, err)
	assert.Equal(t, []string{"SELECT 1", "SELECT 2", "DELETE FROM T"}, out)
}
