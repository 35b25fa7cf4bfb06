// Package dbengine is the core per-database request engine described in
// spec §1: it owns a database's lifecycle and connection pool, resolves
// stored statements and parameters, runs the transaction executor, the
// macro engine, the backup engine, the auth gate and the scheduler.
//
// Grounded on the teacher's internal/database (pool + migration lifecycle)
// and internal/backups (scheduler + retention) packages, generalized from a
// single shared application database into N independently-configured
// databases, one per spec.md's Database data-model entry.
package dbengine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/proofrock/sqliterg/internal/apperr"
	"github.com/proofrock/sqliterg/internal/dbpool"
	"github.com/proofrock/sqliterg/internal/domain"
	"github.com/proofrock/sqliterg/internal/stmtres"
)

// Database is one configured endpoint: its pool, its compiled macros and
// stored statements, its backup policy and its auth gate.
type Database struct {
	Name                    string
	ReadOnly                bool
	CORSOrigin              string
	UseOnlyStoredStatements bool
	IsMemory                bool
	Path                    string // empty for in-memory databases

	Pool    *dbpool.Pool
	Stmts   *stmtres.Map
	Macros  []*CompiledMacro
	Backup  *BackupEngine
	Auth    *AuthGate
	Sched   *Scheduler
}

// CompiledMacro is a macro whose statement list has been resolved against
// the stored-statement map once, at bootstrap (spec §4.5, §9).
type CompiledMacro struct {
	ID                 string
	Statements         []string
	DisableTransaction bool
	Execution          domain.Execution
}

// Open constructs a Database from its name and config: decides create-vs-open,
// opens the pool, compiles macros and stored statements, runs onCreate/
// onStartup macros and backups, and returns the ready-to-serve Database.
//
// For a fresh file database whose init macro fails, Open deletes the file
// and returns a Fatal error — spec §4.5: "a persisted database never
// contains a half-applied init", so the caller (bootstrap) must exit the
// process nonzero and let the next start re-enter the create path.
func Open(name string, path string, cfg domain.Database) (*Database, error) {
	isMemory := path == ""

	freshlyCreated := isMemory
	if !isMemory {
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				freshlyCreated = true
			} else {
				return nil, apperr.Wrap(apperr.KindFatal, "stat database file", err)
			}
		}
	}

	dsn := dsnFor(path, cfg.JournalMode, cfg.ReadOnly)

	pool, err := dbpool.Open(dbpool.Options{DSN: dsn, ReadOnly: cfg.ReadOnly})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindFatal, "open pool for database "+name, err)
	}

	stmts, err := stmtres.NewMap(cfg.StoredStatements)
	if err != nil {
		pool.Close()
		return nil, err
	}

	macros, err := compileMacros(cfg.Macros, stmts)
	if err != nil {
		pool.Close()
		return nil, err
	}

	var backup *BackupEngine
	if cfg.Backup != nil {
		backup, err = newBackupEngine(name, isMemory, path, *cfg.Backup)
		if err != nil {
			pool.Close()
			return nil, err
		}
	}

	auth, err := newAuthGate(cfg.Auth)
	if err != nil {
		pool.Close()
		return nil, err
	}

	db := &Database{
		Name:                    name,
		ReadOnly:                cfg.ReadOnly,
		CORSOrigin:              cfg.CORSOrigin,
		UseOnlyStoredStatements: cfg.UseOnlyStoredStatements,
		IsMemory:                isMemory,
		Path:                    path,
		Pool:                    pool,
		Stmts:                   stmts,
		Macros:                  macros,
		Backup:                  backup,
		Auth:                    auth,
	}

	ctx := context.Background()

	if freshlyCreated {
		log.Info().Str("db", name).Msg("database is freshly created, running onCreate macros")
		if err := db.runTriggered(ctx, func(e domain.Execution) bool { return e.OnCreate }); err != nil {
			pool.Close()
			if !isMemory {
				_ = os.Remove(path)
				log.Error().Str("db", name).Err(err).Msg("onCreate macro failed, removing freshly-created database file")
			}
			return nil, apperr.Wrap(apperr.KindFatal, "onCreate macro failed for database "+name, err)
		}
		if backup != nil && cfg.Backup.Execution.OnCreate {
			if _, err := backup.Run(ctx, db); err != nil {
				log.Error().Str("db", name).Err(err).Msg("onCreate backup failed")
			}
		}
	}

	// onStartup runs every start, after onCreate. A macro marked both
	// onCreate and onStartup already ran above on the create cycle, so it
	// must not run again here (spec §3 invariant).
	runOnStartup := func(e domain.Execution) bool {
		if freshlyCreated && e.OnCreate && e.OnStartup {
			return false
		}
		return e.OnStartup
	}
	if err := db.runTriggered(ctx, runOnStartup); err != nil {
		pool.Close()
		return nil, apperr.Wrap(apperr.KindFatal, "onStartup macro failed for database "+name, err)
	}
	if backup != nil {
		runBackupOnStartup := cfg.Backup.Execution.OnStartup && !(freshlyCreated && cfg.Backup.Execution.OnCreate)
		if runBackupOnStartup {
			if _, err := backup.Run(ctx, db); err != nil {
				log.Error().Str("db", name).Err(err).Msg("onStartup backup failed")
			}
		}
	}

	db.Sched = newScheduler(db)

	return db, nil
}

func dsnFor(path string, journalMode string, readOnly bool) string {
	jm := journalMode
	if jm == "" {
		jm = "WAL"
	}
	target := path
	if target == "" {
		target = ":memory:"
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(%s)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)", target, jm)
	if readOnly {
		dsn += "&_pragma=query_only(1)"
	}
	return dsn
}

func compileMacros(macros []domain.Macro, stmts *stmtres.Map) ([]*CompiledMacro, error) {
	out := make([]*CompiledMacro, 0, len(macros))
	for _, m := range macros {
		resolved, err := stmts.ResolveAll(m.Statements)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindFatal, "compiling macro "+m.ID, err)
		}
		out = append(out, &CompiledMacro{
			ID:                 m.ID,
			Statements:         resolved,
			DisableTransaction: m.DisableTransaction,
			Execution:          m.Execution,
		})
	}
	return out, nil
}

// Close releases the pool and stops the scheduler.
func (d *Database) Close() {
	if d.Sched != nil {
		d.Sched.Stop()
	}
	if d.Pool != nil {
		d.Pool.Close()
	}
}

// BackupDirConflictsWithData reports whether backupDir resolves to the same
// directory as the database file — a self-overwrite hazard that must fail
// bootstrap (spec §4.6 Safety).
func BackupDirConflictsWithData(dbPath, backupDir string) (bool, error) {
	if dbPath == "" || backupDir == "" {
		return false, nil
	}
	dbDir, err := filepath.Abs(filepath.Dir(dbPath))
	if err != nil {
		return false, err
	}
	absBackup, err := filepath.Abs(backupDir)
	if err != nil {
		return false, err
	}
	return dbDir == absBackup, nil
}
