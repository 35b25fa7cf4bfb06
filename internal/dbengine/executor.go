// Executor implements the core transaction contract of spec §4.4: a request
// is a single all-or-nothing transaction over an ordered list of items, each
// either a query (produces a result set) or a statement (produces an update
// count), with per-item values/valuesBatch binding and noFail recovery.
//
// Grounded on the teacher's internal/database/db.go BeginTx dialect-switch
// (read-only vs write connection) and generalized to SQLite's explicit
// BEGIN/BEGIN IMMEDIATE statement forms, since database/sql's sql.Tx isolation
// levels don't expose SQLite's immediate-lock semantics directly.
package dbengine

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/proofrock/sqliterg/internal/apperr"
	"github.com/proofrock/sqliterg/internal/dbpool"
	"github.com/proofrock/sqliterg/internal/domain"
	"github.com/proofrock/sqliterg/internal/sqlvalue"
)

// Execute acquires a client connection, runs the request's transaction, and
// releases the connection. It performs no auth check; the API handler for
// POST /<db> uses AcquireAndAuthenticate and ExecuteOn instead.
func (d *Database) Execute(ctx context.Context, items []domain.RequestItem) (*domain.Response, error) {
	conn, err := d.Pool.AcquireClient(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	return d.executeOn(ctx, conn, items)
}

// AcquireAndAuthenticate acquires a client connection and checks auth on it
// in one step, since byQuery auth needs a live connection. The caller must
// Release the returned connection.
func (d *Database) AcquireAndAuthenticate(ctx context.Context, user, password string) (*dbpool.Conn, error) {
	conn, err := d.Pool.AcquireClient(ctx)
	if err != nil {
		return nil, err
	}
	if err := d.Auth.Check(ctx, conn.DB(), user, password); err != nil {
		conn.Release()
		return nil, err
	}
	return conn, nil
}

// ExecuteOn runs a request's transaction on an already-acquired, already-
// authenticated connection (used by the handler after AcquireAndAuthenticate).
func (d *Database) ExecuteOn(ctx context.Context, conn *dbpool.Conn, items []domain.RequestItem) (*domain.Response, error) {
	return d.executeOn(ctx, conn, items)
}

func (d *Database) executeOn(ctx context.Context, conn *dbpool.Conn, items []domain.RequestItem) (*domain.Response, error) {
	beginSQL := "BEGIN"
	if !d.ReadOnly {
		beginSQL = "BEGIN IMMEDIATE"
	}
	if _, err := conn.DB().ExecContext(ctx, beginSQL); err != nil {
		return nil, apperr.Wrap(apperr.KindEngine, "begin transaction", err)
	}

	results := make([]domain.ResultItem, 0, len(items))
	for i, item := range items {
		res, err := d.execItem(ctx, conn, item)
		if err != nil {
			if item.NoFail {
				results = append(results, domain.ResultItem{Success: false, Error: err.Error()})
				continue
			}
			_, _ = conn.DB().ExecContext(ctx, "ROLLBACK")
			return nil, apperr.As(err).WithIndex(i)
		}
		results = append(results, res)
	}

	if _, err := conn.DB().ExecContext(ctx, "COMMIT"); err != nil {
		return nil, apperr.Wrap(apperr.KindEngine, "commit transaction", err)
	}

	return &domain.Response{Results: results}, nil
}

func (d *Database) execItem(ctx context.Context, conn *dbpool.Conn, item domain.RequestItem) (domain.ResultItem, error) {
	if err := item.Validate(); err != nil {
		return domain.ResultItem{}, err
	}

	text, err := d.Stmts.Resolve(item.Text(), d.UseOnlyStoredStatements)
	if err != nil {
		return domain.ResultItem{}, err
	}

	if err := checkShape(item.IsQuery(), text); err != nil {
		return domain.ResultItem{}, err
	}

	sets, isBatch, err := sqlvalue.ResolveBindings(item.Values, item.ValuesBatch)
	if err != nil {
		return domain.ResultItem{}, err
	}

	if item.IsQuery() {
		if isBatch {
			return domain.ResultItem{}, apperr.BadRequest("a query cannot use valuesBatch")
		}
		return d.execQuery(ctx, conn, text, sets[0])
	}
	return d.execStatement(ctx, conn, text, sets, isBatch)
}

// queryShapedKeywords are the leading tokens spec §4.4 requires recognizing
// as "produces a result set", used to catch a query/statement field mismatch
// before ever reaching the engine.
var queryShapedKeywords = []string{"SELECT", "WITH", "VALUES", "EXPLAIN", "PRAGMA"}

// checkShape implements the lightweight first-token shape check: a
// `statement` field whose text is query-shaped, or a `query` field whose text
// is not, is a BadRequest before the engine ever sees it.
func checkShape(isQuery bool, text string) error {
	queryShaped := isQueryShaped(text)
	if isQuery && !queryShaped {
		return apperr.BadRequest("query field does not contain a query-shaped statement")
	}
	if !isQuery && queryShaped {
		return apperr.BadRequest("statement field contains a query-shaped statement")
	}
	return nil
}

func isQueryShaped(text string) bool {
	token := firstToken(text)
	for _, kw := range queryShapedKeywords {
		if strings.EqualFold(token, kw) {
			return true
		}
	}
	return false
}

// firstToken skips leading whitespace and SQL comments (-- line and /* block
// */) and returns the first word, for the shape check above.
func firstToken(text string) string {
	s := text
	for {
		s = strings.TrimLeft(s, " \t\r\n")
		switch {
		case strings.HasPrefix(s, "--"):
			if i := strings.IndexByte(s, '\n'); i >= 0 {
				s = s[i+1:]
				continue
			}
			return ""
		case strings.HasPrefix(s, "/*"):
			if i := strings.Index(s, "*/"); i >= 0 {
				s = s[i+2:]
				continue
			}
			return ""
		}
		break
	}
	end := strings.IndexFunc(s, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '('
	})
	if end < 0 {
		return s
	}
	return s[:end]
}

func (d *Database) execQuery(ctx context.Context, conn *dbpool.Conn, sqlText string, args sqlvalue.BindSet) (domain.ResultItem, error) {
	rows, err := conn.DB().QueryContext(ctx, sqlText, []any(args)...)
	if err != nil {
		return domain.ResultItem{}, apperr.Wrap(apperr.KindEngine, "query", err)
	}
	defer rows.Close()

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return domain.ResultItem{}, apperr.Wrap(apperr.KindEngine, "reading columns", err)
	}
	cols := make([]string, len(colTypes))
	isBool := make([]bool, len(colTypes))
	for i, ct := range colTypes {
		cols[i] = ct.Name()
		isBool[i] = strings.EqualFold(ct.DatabaseTypeName(), "BOOL") || strings.EqualFold(ct.DatabaseTypeName(), "BOOLEAN")
	}

	resultSet := make([]map[string]any, 0)
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return domain.ResultItem{}, apperr.Wrap(apperr.KindEngine, "scanning row", err)
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			row[c] = normalizeScanned(vals[i], isBool[i])
		}
		resultSet = append(resultSet, row)
	}
	if err := rows.Err(); err != nil {
		return domain.ResultItem{}, apperr.Wrap(apperr.KindEngine, "iterating rows", err)
	}

	return domain.ResultItem{Success: true, ResultSet: resultSet}, nil
}

// normalizeScanned maps a driver-scanned column value back into the wire
// shape: BLOB columns round-trip through the same "base64:" string
// convention request parameters use (spec §4.3's closed variant applies
// symmetrically to reads); a BOOLEAN-declared column round-trips its
// stored 0/1 integer back to the literal string "true"/"false" (spec §8).
func normalizeScanned(v any, isBool bool) any {
	if b, ok := v.([]byte); ok {
		return blobPrefix + base64.StdEncoding.EncodeToString(b)
	}
	if isBool {
		if n, ok := v.(int64); ok {
			if n != 0 {
				return "true"
			}
			return "false"
		}
	}
	return v
}

const blobPrefix = "base64:"

func (d *Database) execStatement(ctx context.Context, conn *dbpool.Conn, sqlText string, sets []sqlvalue.BindSet, isBatch bool) (domain.ResultItem, error) {
	stmt, err := conn.DB().PrepareContext(ctx, sqlText)
	if err != nil {
		return domain.ResultItem{}, apperr.Wrap(apperr.KindEngine, "prepare statement", err)
	}
	defer stmt.Close()

	if isBatch {
		counts := make([]int, 0, len(sets))
		for _, set := range sets {
			res, err := stmt.ExecContext(ctx, []any(set)...)
			if err != nil {
				return domain.ResultItem{}, apperr.Wrap(apperr.KindEngine, "batch exec", err)
			}
			n, _ := res.RowsAffected()
			counts = append(counts, int(n))
		}
		return domain.ResultItem{Success: true, RowsUpdatedBatch: counts}, nil
	}

	res, err := stmt.ExecContext(ctx, []any(sets[0])...)
	if err != nil {
		return domain.ResultItem{}, apperr.Wrap(apperr.KindEngine, "exec", err)
	}
	n, _ := res.RowsAffected()
	rows := int(n)
	return domain.ResultItem{Success: true, RowsUpdated: &rows}, nil
}
