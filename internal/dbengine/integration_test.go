package dbengine_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proofrock/sqliterg/internal/dbengine"
	"github.com/proofrock/sqliterg/internal/domain"
)

// These tests drive a real modernc.org/sqlite connection end to end, the
// gap flagged against the prior pure-function-only suite: they exercise
// Database.Open's onCreate ordering and the executor's transaction/rollback
// contract against a live engine, not just the helpers around it.

func openMemoryDB(t *testing.T, cfg domain.Database) *dbengine.Database {
	t.Helper()
	db, err := dbengine.Open(t.Name(), "", cfg)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

func TestOpenRunsOnCreateThenExecutesTransaction(t *testing.T) {
	cfg := domain.Database{
		Macros: []domain.Macro{{
			ID:         "init",
			Statements: []string{"CREATE TABLE t1 (id INTEGER PRIMARY KEY, val TEXT NOT NULL)"},
			Execution:  domain.Execution{OnCreate: true},
		}},
	}
	db := openMemoryDB(t, cfg)

	resp, err := db.Execute(context.Background(), []domain.RequestItem{
		{Statement: "INSERT INTO t1 (id, val) VALUES (1, 'ONE')"},
		{Query: "SELECT id, val FROM t1"},
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)

	assert.True(t, resp.Results[0].Success)
	require.NotNil(t, resp.Results[0].RowsUpdated)
	assert.Equal(t, 1, *resp.Results[0].RowsUpdated)

	assert.True(t, resp.Results[1].Success)
	require.Len(t, resp.Results[1].ResultSet, 1)
	assert.EqualValues(t, 1, resp.Results[1].ResultSet[0]["id"])
	assert.Equal(t, "ONE", resp.Results[1].ResultSet[0]["val"])
}

// TestTransactionRollbackLeavesZeroRowResultSetKeyPresent is spec §8 literal
// scenario 2: a failing transaction rolls back entirely, and a subsequent
// query against the untouched table reports resultSet == [], not an absent
// key (the encoding/json omitempty bug fixed in wire.go).
func TestTransactionRollbackLeavesZeroRowResultSetKeyPresent(t *testing.T) {
	cfg := domain.Database{
		Macros: []domain.Macro{{
			ID:         "init",
			Statements: []string{"CREATE TABLE t1 (id INTEGER PRIMARY KEY, val TEXT NOT NULL)"},
			Execution:  domain.Execution{OnCreate: true},
		}},
	}
	db := openMemoryDB(t, cfg)
	ctx := context.Background()

	_, err := db.Execute(ctx, []domain.RequestItem{
		{Statement: "INSERT INTO t1 (id, val) VALUES (1, 'ONE')"},
		{Statement: "INSERT INTO t1 (id, val) VALUES (1, 'TWO')"}, // PK collision, fails
	})
	require.Error(t, err)

	resp, err := db.Execute(ctx, []domain.RequestItem{{Query: "SELECT * FROM t1"}})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.NotNil(t, resp.Results[0].ResultSet)
	assert.Empty(t, resp.Results[0].ResultSet)

	out, err := json.Marshal(resp.Results[0])
	require.NoError(t, err)
	assert.Contains(t, string(out), `"resultSet":[]`)
}

// TestNoFailRecordsPerItemErrorWithoutAbortingTransaction is spec §8 literal
// scenario 3.
func TestNoFailRecordsPerItemErrorWithoutAbortingTransaction(t *testing.T) {
	cfg := domain.Database{
		Macros: []domain.Macro{{
			ID:         "init",
			Statements: []string{"CREATE TABLE t1 (id INTEGER PRIMARY KEY, val TEXT NOT NULL)"},
			Execution:  domain.Execution{OnCreate: true},
		}},
	}
	db := openMemoryDB(t, cfg)

	resp, err := db.Execute(context.Background(), []domain.RequestItem{
		{Statement: "INSERT INTO t1 (id, val) VALUES (1, 'ONE')"},
		{Statement: "INSERT INTO t1 (id, val) VALUES (1, 'TWO')", NoFail: true},
		{Query: "SELECT * FROM t1 WHERE id = 1"},
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 3)

	assert.True(t, resp.Results[0].Success)
	assert.False(t, resp.Results[1].Success)
	assert.NotEmpty(t, resp.Results[1].Error)

	assert.True(t, resp.Results[2].Success)
	require.Len(t, resp.Results[2].ResultSet, 1)
	assert.Equal(t, "ONE", resp.Results[2].ResultSet[0]["val"])
}

// TestBoolColumnRoundTripsAsLiteralStringOverTheWire is spec §8's BOOL
// round-trip invariant, against a real declared-type column.
func TestBoolColumnRoundTripsAsLiteralStringOverTheWire(t *testing.T) {
	cfg := domain.Database{
		Macros: []domain.Macro{{
			ID:         "init",
			Statements: []string{"CREATE TABLE flags (id INTEGER PRIMARY KEY, active BOOLEAN NOT NULL)"},
			Execution:  domain.Execution{OnCreate: true},
		}},
	}
	db := openMemoryDB(t, cfg)

	resp, err := db.Execute(context.Background(), []domain.RequestItem{
		{Statement: "INSERT INTO flags (id, active) VALUES (1, ?)", Values: []any{true}},
		{Query: "SELECT active FROM flags WHERE id = 1"},
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	require.Len(t, resp.Results[1].ResultSet, 1)
	assert.Equal(t, "true", resp.Results[1].ResultSet[0]["active"])
}

func TestMacroRunByIDAgainstLiveConnection(t *testing.T) {
	cfg := domain.Database{
		Macros: []domain.Macro{
			{ID: "init", Statements: []string{"CREATE TABLE counter (n INTEGER)"}, Execution: domain.Execution{OnCreate: true}},
			{ID: "bump", Statements: []string{"INSERT INTO counter (n) VALUES (1)"}},
		},
	}
	db := openMemoryDB(t, cfg)
	ctx := context.Background()

	require.NoError(t, db.RunMacroByID(ctx, "bump"))
	require.NoError(t, db.RunMacroByID(ctx, "bump"))

	resp, err := db.Execute(ctx, []domain.RequestItem{{Query: "SELECT COUNT(*) AS c FROM counter"}})
	require.NoError(t, err)
	require.Len(t, resp.Results[0].ResultSet, 1)
	assert.EqualValues(t, 2, resp.Results[0].ResultSet[0]["c"])

	err = db.RunMacroByID(ctx, "does-not-exist")
	assert.Error(t, err)
}
