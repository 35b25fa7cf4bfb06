package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/proofrock/sqliterg/internal/api/middleware"
	"github.com/proofrock/sqliterg/internal/apperr"
	"github.com/proofrock/sqliterg/internal/dbengine"
)

// Macro handles POST /<db>/macro/<id>: a web-callable macro trigger, gated
// by the macro's own webService token rather than the database's client auth
// (spec §4.5).
func (h *Handlers) Macro(w http.ResponseWriter, r *http.Request) {
	db := middleware.DatabaseFrom(r)
	id := chi.URLParam(r, "id")

	m, ok := db.FindMacro(id)
	if !ok {
		respondError(w, apperr.NotFound("macro %q not found", id), 0)
		return
	}

	if ok, status := dbengine.WebServiceAuth(m.Execution.WebService, r.URL.Query().Get("token")); !ok {
		respondError(w, apperr.New(apperr.KindUnauthorized, "invalid macro token"), status)
		return
	}

	if err := db.RunMacroByID(r.Context(), id); err != nil {
		respondError(w, err, 0)
		return
	}

	respondJSON(w, http.StatusOK, nil)
}
