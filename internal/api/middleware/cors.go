package middleware

import (
	"net/http"
)

// CORS applies a database's corsOrigin policy (spec §4.1's per-database CORS
// setting): a configured origin of "*" allows any origin; a specific origin
// string is echoed back only when it matches the request's Origin header; an
// empty corsOrigin emits no Access-Control-Allow-Origin header. Every OPTIONS
// request is answered 204 with Allow-Methods and Allow-Headers, whatever the
// policy.
//
// rs/cors's allow-list middleware can't express "the allowed origin is a
// runtime value looked up per path segment" without constructing one cors.Cors
// instance per database ahead of time, which the bootstrap's single shared
// router doesn't have — so this mirrors rs/cors's header-writing behavior by
// hand, grounded on the teacher's server_cors_test.go expectations (preflight
// answers 204, Allow-Origin echoes Origin, Allow-Credentials is "true").
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		db := DatabaseFrom(r)

		if db != nil && db.CORSOrigin != "" {
			origin := r.Header.Get("Origin")
			switch {
			case db.CORSOrigin == "*":
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case origin != "" && origin == db.CORSOrigin:
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Vary", "Origin")
			}
		}

		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
