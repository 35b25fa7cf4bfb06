package middleware

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/proofrock/sqliterg/internal/api/ctxkeys"
	"github.com/proofrock/sqliterg/internal/dbengine"
)

// Registry is the lookup interface ResolveDatabase uses internally;
// mapRegistry adapts the plain map it is given. Declared here to avoid an
// import cycle with package api.
type Registry interface {
	Lookup(name string) (*dbengine.Database, bool)
}

// mapRegistry adapts a plain map to Registry.
type mapRegistry map[string]*dbengine.Database

func (m mapRegistry) Lookup(name string) (*dbengine.Database, bool) {
	db, ok := m[name]
	return db, ok
}

// ResolveDatabase looks up the {db} URL param in reg and stashes it in the
// request context, answering 404 for an unknown database name. reg is a
// plain map[string]*dbengine.Database (api.Registry converts to it).
func ResolveDatabase(reg map[string]*dbengine.Database) func(http.Handler) http.Handler {
	registry := mapRegistry(reg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			name := chi.URLParam(r, "db")
			db, ok := registry.Lookup(name)
			if !ok {
				http.Error(w, `{"error":"unknown database"}`, http.StatusNotFound)
				return
			}
			ctx := context.WithValue(r.Context(), ctxkeys.Database, db)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// DatabaseFrom retrieves the database stashed by ResolveDatabase.
func DatabaseFrom(r *http.Request) *dbengine.Database {
	db, _ := r.Context().Value(ctxkeys.Database).(*dbengine.Database)
	return db
}
