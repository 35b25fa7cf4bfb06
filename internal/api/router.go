// Package api wires the chi router: request-scoped middleware (request ID,
// structured logging, panic recovery, compression, per-database CORS) and the
// routes for the request/macro/backup surface of spec §5.
//
// Grounded on the teacher's internal/api/router.go NewRouter wiring, adapted
// from a single shared-dependency API surface to one routed per {db} path
// segment, each resolving its own dbengine.Database and CORS/auth policy.
package api

import (
	"net/http"

	"github.com/CAFxX/httpcompression"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/proofrock/sqliterg/internal/api/handlers"
	apimiddleware "github.com/proofrock/sqliterg/internal/api/middleware"
	"github.com/proofrock/sqliterg/internal/dbengine"
)

// Registry resolves a database by the name that appears in its URL segment.
type Registry map[string]*dbengine.Database

// NewRouter builds the full mux. serveDir, if non-empty, additionally mounts
// a static file server at "/" for SPEC_FULL.md's supplemented --serve-dir
// feature, kept outside the core engine.
func NewRouter(reg Registry, serveDir string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(apimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	if comp, err := httpcompression.DefaultAdapter(); err == nil {
		r.Use(comp)
	}

	var fs http.Handler
	if serveDir != "" {
		fs = http.FileServer(http.Dir(serveDir))
	}

	r.Route("/{db}", func(dbRouter chi.Router) {
		if fs != nil {
			dbRouter.Use(func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
					if _, ok := reg[chi.URLParam(req, "db")]; !ok {
						fs.ServeHTTP(w, req)
						return
					}
					next.ServeHTTP(w, req)
				})
			})
		}
		dbRouter.Use(apimiddleware.ResolveDatabase(reg))
		dbRouter.Use(apimiddleware.CORS)

		h := handlers.New()
		dbRouter.Post("/", h.Exec)
		dbRouter.Post("/exec", h.Exec) // compat alias, see SPEC_FULL.md supplemented features
		dbRouter.Post("/macro/{id}", h.Macro)
		dbRouter.Post("/backup", h.Backup)
	})

	if fs != nil {
		// Static files are a fallback for any path that isn't a registered
		// database name, per SPEC_FULL.md's supplemented --serve-dir feature.
		r.NotFound(fs.ServeHTTP)
	}

	return r
}
