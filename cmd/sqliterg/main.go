// Command sqliterg serves one or more SQLite-compatible databases over
// HTTP/JSON. See SPEC_FULL.md for the full contract; this file only wires
// CLI flags to the bootstrapper and the HTTP server.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/proofrock/sqliterg/internal/api"
	"github.com/proofrock/sqliterg/internal/bootstrap"
	"github.com/proofrock/sqliterg/internal/dbengine"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	if err := newRootCommand().Execute(); err != nil {
		log.Fatal().Err(err).Msg("sqliterg exited with an error")
	}
}

func newRootCommand() *cobra.Command {
	var (
		dbFlags    []string
		memDBFlags []string
		serveDir   string
		port       uint16
		bindHost   string
	)

	cmd := &cobra.Command{
		Use:   "sqliterg",
		Short: "Serve SQLite databases over HTTP/JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), dbFlags, memDBFlags, serveDir, port, bindHost)
		},
	}

	cmd.Flags().StringArrayVar(&dbFlags, "db", nil, "path[::yaml-path] of a file-backed database (repeatable)")
	cmd.Flags().StringArrayVar(&memDBFlags, "mem-db", nil, "name[::yaml-path] of an in-memory database (repeatable)")
	cmd.Flags().StringVar(&serveDir, "serve-dir", "", "directory to serve as static files alongside the databases")
	cmd.Flags().Uint16Var(&port, "port", 12321, "TCP port to listen on")
	cmd.Flags().StringVar(&bindHost, "bind-host", "0.0.0.0", "address to bind the listener to")

	return cmd
}

func run(ctx context.Context, dbFlags, memDBFlags []string, serveDir string, port uint16, bindHost string) error {
	if len(dbFlags) == 0 && len(memDBFlags) == 0 && serveDir == "" {
		return fmt.Errorf("at least one --db, --mem-db, or --serve-dir is required")
	}

	specs, err := parseSpecs(dbFlags, memDBFlags)
	if err != nil {
		return err
	}

	databases, err := bootstrap.Open(specs)
	if err != nil {
		return fmt.Errorf("bootstrap failed: %w", err)
	}
	defer closeAll(databases)

	reg := make(api.Registry, len(databases))
	for name, db := range databases {
		reg[name] = db
	}

	router := api.NewRouter(reg, serveDir)

	addr := net.JoinHostPort(bindHost, fmt.Sprintf("%d", port))
	server := &http.Server{Addr: addr, Handler: router}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Int("databases", len(databases)).Msg("listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("listen failed: %w", err)
		}
	case <-sigCtx.Done():
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("graceful shutdown failed")
		}
	}

	return nil
}

func parseSpecs(dbFlags, memDBFlags []string) ([]bootstrap.DBSpec, error) {
	specs := make([]bootstrap.DBSpec, 0, len(dbFlags)+len(memDBFlags))
	for _, raw := range dbFlags {
		spec, err := bootstrap.ParseFileFlag(raw)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	for _, raw := range memDBFlags {
		spec, err := bootstrap.ParseMemFlag(raw)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func closeAll(databases map[string]*dbengine.Database) {
	for _, db := range databases {
		db.Close()
	}
}
