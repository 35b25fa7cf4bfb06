// Package stmtres resolves a request item's textual SQL field against a
// database's stored-statement map (spec §4.2). Resolution is pure: no
// side effects, no connection required.
package stmtres

import (
	"strings"

	"github.com/proofrock/sqliterg/internal/apperr"
	"github.com/proofrock/sqliterg/internal/domain"
)

// Map is the immutable, post-bootstrap stored-statement lookup for one
// database.
type Map struct {
	byID map[string]string
}

// NewMap compiles a database's storedStatements list into a resolver,
// failing if two entries share an id (spec §3 invariant).
func NewMap(stmts []domain.StoredStatement) (*Map, error) {
	m := &Map{byID: make(map[string]string, len(stmts))}
	for _, s := range stmts {
		if _, exists := m.byID[s.ID]; exists {
			return nil, apperr.New(apperr.KindFatal, "duplicate stored statement id "+s.ID)
		}
		m.byID[s.ID] = s.SQL
	}
	return m, nil
}

// Resolve returns the literal SQL text for a request item's raw field.
// If useOnlyStored is true, non-"^id" text is rejected with Forbidden
// (maps to HTTP 409, spec §4.2/§4.8).
func (m *Map) Resolve(text string, useOnlyStored bool) (string, error) {
	if strings.HasPrefix(text, "^") {
		id := text[1:]
		sql, ok := m.byID[id]
		if !ok {
			return "", apperr.NotFound("stored statement %q not found", id)
		}
		return sql, nil
	}

	if useOnlyStored {
		return "", apperr.Forbidden("database only accepts stored statements (^id)")
	}

	return text, nil
}

// ResolveAll eagerly resolves a list of statements (some possibly "^id")
// against m, failing fast on the first unknown id. Used to compile a
// macro's statement list once at bootstrap (spec §4.5, §9).
func (m *Map) ResolveAll(texts []string) ([]string, error) {
	out := make([]string, len(texts))
	for i, t := range texts {
		resolved, err := m.Resolve(t, false)
		if err != nil {
			return nil, err
		}
		out[i] = resolved
	}
	return out, nil
}
