package dbengine

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"net/http"

	"github.com/proofrock/sqliterg/internal/apperr"
	"github.com/proofrock/sqliterg/internal/domain"
)

// AuthGate enforces a database's client auth policy (spec §4.7): either a
// fixed byCredentials list (plain or SHA-256-hashed passwords) or a byQuery
// SQL predicate run directly on the acquired connection.
type AuthGate struct {
	mode          domain.AuthMode
	errorStatus   int
	byQuery       string
	byCredentials []domain.Credential
}

func newAuthGate(cfg *domain.Auth) (*AuthGate, error) {
	if cfg == nil {
		return nil, nil
	}
	if cfg.Mode != domain.AuthModeInline && cfg.Mode != domain.AuthModeHTTPBasic {
		return nil, apperr.New(apperr.KindFatal, "unknown auth mode "+string(cfg.Mode))
	}
	if cfg.ByQuery == "" && len(cfg.ByCredentials) == 0 {
		return nil, apperr.New(apperr.KindFatal, "auth requires byQuery or byCredentials")
	}
	for _, c := range cfg.ByCredentials {
		if c.Password == "" && c.HashedPassword == "" {
			return nil, apperr.New(apperr.KindFatal, "byCredentials entry for user "+c.User+" has neither password nor hashedPassword")
		}
	}
	status := http.StatusUnauthorized
	if cfg.AuthErrorCode != nil {
		status = *cfg.AuthErrorCode
	}
	return &AuthGate{
		mode:          cfg.Mode,
		errorStatus:   status,
		byQuery:       cfg.ByQuery,
		byCredentials: cfg.ByCredentials,
	}, nil
}

// Mode reports where the credential source is: the request body (INLINE) or
// the HTTP Basic header (HTTP_BASIC).
func (g *AuthGate) Mode() domain.AuthMode { return g.mode }

// ErrorStatus is the HTTP status to answer with on an auth failure,
// configurable per database via authErrorCode (spec §4.7).
func (g *AuthGate) ErrorStatus() int { return g.errorStatus }

// Check validates a (user, password) pair, either against the static
// byCredentials list or by running byQuery on conn. A nil AuthGate always
// authorizes (auth disabled).
func (g *AuthGate) Check(ctx context.Context, conn *sql.Conn, user, password string) error {
	if g == nil {
		return nil
	}
	if len(g.byCredentials) > 0 {
		if matchCredentials(g.byCredentials, user, password) {
			return nil
		}
		return apperr.New(apperr.KindUnauthorized, "invalid credentials")
	}
	return g.checkByQuery(ctx, conn, user, password)
}

// matchCredentials implements spec §4.7's "if both plain and hashed are set
// on the same entry, the plaintext entry wins" rule: per matching entry,
// only the plain password is consulted when present, and the hash check is
// used only as a fallback for entries that have no plain password at all.
func matchCredentials(creds []domain.Credential, user, password string) bool {
	hashed := sha256Hex(password)
	for _, c := range creds {
		if c.User != user {
			continue
		}
		if c.Password != "" {
			if c.Password == password {
				return true
			}
			continue
		}
		if c.HashedPassword != "" && c.HashedPassword == hashed {
			return true
		}
	}
	return false
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// checkByQuery evaluates g.byQuery directly on conn: one or more rows
// authenticates, zero rows rejects (spec §4.7). No transaction is opened
// around the query and nothing here makes it read-only; only a readOnly
// database's query_only connection setting prevents writes.
func (g *AuthGate) checkByQuery(ctx context.Context, conn *sql.Conn, user, password string) error {
	rows, err := conn.QueryContext(ctx, g.byQuery, sql.Named("user", user), sql.Named("password", password))
	if err != nil {
		return apperr.Wrap(apperr.KindUnauthorized, "byQuery auth check", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return apperr.New(apperr.KindUnauthorized, "invalid credentials")
	}
	return nil
}
