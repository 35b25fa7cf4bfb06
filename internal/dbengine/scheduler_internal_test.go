package dbengine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proofrock/sqliterg/internal/domain"
)

func TestUntilNextMinuteBoundary(t *testing.T) {
	base := time.Date(2026, 7, 31, 10, 4, 17, 0, time.UTC)
	d := untilNextMinuteBoundary(base)
	assert.Equal(t, 43*time.Second, d)

	onBoundary := time.Date(2026, 7, 31, 10, 5, 0, 0, time.UTC)
	d = untilNextMinuteBoundary(onBoundary)
	assert.Equal(t, time.Minute, d)
}

func countRows(t *testing.T, db *Database, query string) int {
	t.Helper()
	conn, err := db.Pool.AcquireInternal(context.Background())
	require.NoError(t, err)
	defer conn.Release()
	var n int
	require.NoError(t, conn.DB().QueryRowContext(context.Background(), query).Scan(&n))
	return n
}

// TestTickFiresOnlyWhenWallClockMinuteDividesThePeriod is spec §4.9's literal
// fire condition: "(wall-clock minute) mod N == 0". Ticking at an
// out-of-phase minute must not run the job; ticking at an in-phase minute
// must.
func TestTickFiresOnlyWhenWallClockMinuteDividesThePeriod(t *testing.T) {
	cfg := domain.Database{
		Macros: []domain.Macro{
			{ID: "init", Statements: []string{"CREATE TABLE counter (n INTEGER)"}, Execution: domain.Execution{OnCreate: true}},
			{ID: "bump", Statements: []string{"INSERT INTO counter (n) VALUES (1)"}, Execution: domain.Execution{Period: 5}},
		},
	}
	db, err := Open(t.Name(), "", cfg)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	base := time.Date(2026, 7, 31, 10, 11, 0, 0, time.UTC)
	db.Sched.tick(base) // minute 11, 11%5 != 0: no-op
	assert.Equal(t, 0, countRows(t, db, "SELECT COUNT(*) FROM counter"))

	db.Sched.tick(base.Add(4 * time.Minute)) // minute 15, 15%5 == 0: fires
	assert.Equal(t, 1, countRows(t, db, "SELECT COUNT(*) FROM counter"))

	db.Sched.tick(base.Add(9 * time.Minute)) // minute 20, fires again
	assert.Equal(t, 2, countRows(t, db, "SELECT COUNT(*) FROM counter"))
}

func TestRunOnceSuppressesReentrantExecution(t *testing.T) {
	cfg := domain.Database{}
	db, err := Open(t.Name(), "", cfg)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	started := make(chan struct{})
	release := make(chan struct{})
	var secondRan bool

	go db.Sched.runOnce("job", func() {
		close(started)
		<-release
	})
	<-started

	db.Sched.runOnce("job", func() { secondRan = true })
	assert.False(t, secondRan, "a second runOnce for the same key must be skipped while the first is in flight")

	close(release)
}
