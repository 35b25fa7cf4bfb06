// Package handlers implements the HTTP-facing request/macro/backup
// endpoints, translating apperr.Error into the JSON error body and status
// code contract of spec §4.8/§7.
//
// Grounded on the teacher's internal/api/handlers/helpers.go response helpers
// (RespondJSON/RespondError/DecodeJSON), generalized to this domain's error
// taxonomy.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/proofrock/sqliterg/internal/apperr"
	"github.com/proofrock/sqliterg/internal/domain"
)

// Handlers bundles the exec/macro/backup endpoints. It carries no state of
// its own — every request resolves its database from the context set by
// apimiddleware.ResolveDatabase — but is a struct (rather than bare funcs)
// to match the teacher's handler-bundle-per-resource convention.
type Handlers struct{}

func New() *Handlers { return &Handlers{} }

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response body")
	}
}

// respondError maps an error to its HTTP status via apperr and writes the
// standard ErrorBody, applying overrideStatus (e.g. a database's configured
// authErrorCode) when it is non-zero.
func respondError(w http.ResponseWriter, err error, overrideStatus int) {
	ae := apperr.As(err)

	status := overrideStatus
	if status == 0 {
		status = apperr.Status(ae.Kind)
	}

	body := domain.ErrorBody{Error: ae.Error()}
	if ae.Index >= 0 {
		idx := ae.Index
		body.Index = &idx
	}

	respondJSON(w, status, body)
}

// decodeJSON decodes with UseNumber so that a values/valuesBatch field typed
// `any` decodes a JSON number into a json.Number instead of float64 — the
// float64 path loses precision past 2^53 and silently corrupts int64 binds
// (spec §4.3/§8 require the full int64 range to round-trip). sqlvalue.FromJSON
// is the counterpart that parses json.Number back into the closed variant.
func decodeJSON[T any](r *http.Request, dest *T) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(dest); err != nil {
		return apperr.BadRequest("invalid request body: %v", err)
	}
	return nil
}
