package handlers

import (
	"net/http"

	"github.com/proofrock/sqliterg/internal/api/middleware"
	"github.com/proofrock/sqliterg/internal/apperr"
	"github.com/proofrock/sqliterg/internal/dbengine"
	"github.com/proofrock/sqliterg/internal/domain"
)

// Exec handles POST /<db> (and its /<db>/exec alias): decode the request,
// authenticate, run the transaction, respond (spec §4.4).
func (h *Handlers) Exec(w http.ResponseWriter, r *http.Request) {
	db := middleware.DatabaseFrom(r)

	var req domain.Request
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err, 0)
		return
	}

	user, password := credentialsFor(r, db, req.Credentials)

	conn, err := db.AcquireAndAuthenticate(r.Context(), user, password)
	if err != nil {
		respondError(w, err, authOverrideStatus(db, err))
		return
	}
	defer conn.Release()

	resp, err := db.ExecuteOn(r.Context(), conn, req.Transaction)
	if err != nil {
		respondError(w, err, 0)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// credentialsFor reads the client's credentials from the request body
// (INLINE mode) or the HTTP Basic header (HTTP_BASIC mode), per spec §4.7.
// A database with no auth configured needs no credentials at all.
func credentialsFor(r *http.Request, db *dbengine.Database, inline *domain.Credentials) (string, string) {
	if db.Auth == nil {
		return "", ""
	}
	if db.Auth.Mode() == domain.AuthModeHTTPBasic {
		user, password, _ := r.BasicAuth()
		return user, password
	}
	if inline == nil {
		return "", ""
	}
	return inline.User, inline.Password
}

// authOverrideStatus returns the database's configured authErrorCode when
// err is an auth failure, or 0 (use apperr's default mapping) otherwise.
func authOverrideStatus(db *dbengine.Database, err error) int {
	if db.Auth == nil {
		return 0
	}
	if apperr.As(err).Kind != apperr.KindUnauthorized {
		return 0
	}
	return db.Auth.ErrorStatus()
}
