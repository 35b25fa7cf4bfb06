package handlers

import (
	"net/http"

	"github.com/proofrock/sqliterg/internal/api/middleware"
	"github.com/proofrock/sqliterg/internal/apperr"
	"github.com/proofrock/sqliterg/internal/dbengine"
)

// Backup handles POST /<db>/backup: an on-demand backup trigger, gated by
// the backup's own webService token (spec §4.6).
func (h *Handlers) Backup(w http.ResponseWriter, r *http.Request) {
	db := middleware.DatabaseFrom(r)

	if db.Backup == nil {
		respondError(w, apperr.New(apperr.KindNotFound, "database has no backup configured"), 0)
		return
	}

	if ok, status := dbengine.WebServiceAuth(db.Backup.WebService(), r.URL.Query().Get("token")); !ok {
		respondError(w, apperr.New(apperr.KindUnauthorized, "invalid backup token"), status)
		return
	}

	if _, err := db.Backup.Run(r.Context(), db); err != nil {
		respondError(w, err, 0)
		return
	}

	respondJSON(w, http.StatusOK, nil)
}
