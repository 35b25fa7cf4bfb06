package dbengine

import (
	"context"

	"github.com/proofrock/sqliterg/internal/apperr"
	"github.com/proofrock/sqliterg/internal/domain"
)

// runTriggered runs every compiled macro for which want returns true, in
// declaration order, stopping at the first failure (spec §4.5: init macros
// fail fast so bootstrap can abort cleanly).
func (d *Database) runTriggered(ctx context.Context, want func(domain.Execution) bool) error {
	for _, m := range d.Macros {
		if !want(m.Execution) {
			continue
		}
		if err := d.runMacro(ctx, m); err != nil {
			return apperr.Wrap(apperr.KindFatal, "macro "+m.ID, err)
		}
	}
	return nil
}

// runMacro executes a compiled macro's statement list on a connection from
// AcquireInternal, wrapping them in a transaction unless disableTransaction
// is set (spec §4.5). That connection comes from the same pool as client
// traffic, so on a readOnly database (query_only) writing statements fail.
func (d *Database) runMacro(ctx context.Context, m *CompiledMacro) error {
	conn, err := d.Pool.AcquireInternal(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if m.DisableTransaction {
		for _, stmt := range m.Statements {
			if _, err := conn.DB().ExecContext(ctx, stmt); err != nil {
				return apperr.Wrap(apperr.KindEngine, "statement in macro "+m.ID, err)
			}
		}
		return nil
	}

	tx, err := conn.DB().BeginTx(ctx, nil)
	if err != nil {
		return apperr.Wrap(apperr.KindEngine, "begin macro transaction", err)
	}
	for _, stmt := range m.Statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return apperr.Wrap(apperr.KindEngine, "statement in macro "+m.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return apperr.Wrap(apperr.KindEngine, "commit macro transaction", err)
	}
	return nil
}

// RunMacroByID looks up and runs one macro on demand — the web-callable path
// for POST /<db>/macro/<id> (spec §4.5's webService trigger). The scheduler
// calls runMacro directly instead.
func (d *Database) RunMacroByID(ctx context.Context, id string) error {
	m := d.findMacro(id)
	if m == nil {
		return apperr.NotFound("macro %q not found", id)
	}
	return d.runMacro(ctx, m)
}

func (d *Database) findMacro(id string) *CompiledMacro {
	for _, m := range d.Macros {
		if m.ID == id {
			return m
		}
	}
	return nil
}

// FindMacro exposes macro lookup to the API layer, so a web-callable macro's
// own token can be checked before RunMacroByID is invoked.
func (d *Database) FindMacro(id string) (*CompiledMacro, bool) {
	m := d.findMacro(id)
	return m, m != nil
}

// WebServiceAuth checks a macro or backup's own webService token against the
// request (query param "token"), independent of the database's own client
// auth gate (spec §4.5/§4.6). A nil WebService always authorizes.
func WebServiceAuth(ws *domain.WebService, token string) (bool, int) {
	status := 401
	if ws == nil {
		return true, status
	}
	if ws.AuthErrorCode != nil {
		status = *ws.AuthErrorCode
	}
	if ws.AuthToken != nil {
		return token == *ws.AuthToken, status
	}
	if ws.HashedAuthToken != nil {
		return sha256Hex(token) == *ws.HashedAuthToken, status
	}
	return true, status
}
