// Command basic-memory runs one sync batch (and, with -watch, a continuous
// watch loop) against a single project's Markdown root, the CLI surface for
// the engine spec.md §4.5/§4.9 describe. Grounded on
// cmd/markdown/import's flag.NewFlagSet-based argument parsing and
// cmd/markdown/internal/bootstrap's wiring shape, adapted from "build a cms
// module" to "build a project sync engine".
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/goliatone/basic-memory/internal/logging/gologger"
	"github.com/goliatone/basic-memory/internal/project"
	"github.com/goliatone/basic-memory/internal/resolver"
	"github.com/goliatone/basic-memory/internal/search"
	"github.com/goliatone/basic-memory/internal/store"
	"github.com/goliatone/basic-memory/internal/sync"
	"github.com/goliatone/basic-memory/internal/watcher"
	"github.com/goliatone/basic-memory/pkg/interfaces"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatalf("basic-memory: %v", err)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("basic-memory", flag.ExitOnError)
	root := fs.String("root", ".", "Project root directory containing Markdown files")
	databaseURL := fs.String("database", "basic-memory.db", "SQLite file path, or postgres://... connection string")
	projectID := fs.String("project", "default", "Project id partitioning the index")
	watch := fs.Bool("watch", false, "Keep running and sync on every filesystem change")
	moveDetect := fs.Bool("detect-moves", true, "Treat a same-checksum new/deleted pair as a rename")
	logLevel := fs.String("log-level", "info", "go-logger level: trace, debug, info, warn, error")
	logFormat := fs.String("log-format", "console", "go-logger output format: json, console, pretty")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := project.Config{
		RootPath:    *root,
		DatabaseURL: *databaseURL,
		ProjectID:   *projectID,
	}

	provider, err := gologger.NewProvider(gologger.Config{Level: *logLevel, Format: *logFormat})
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}

	db, searchBackend, err := openStore(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := store.Migrate(ctx, db); err != nil {
		return fmt.Errorf("migrate entity schema: %w", err)
	}
	if err := migrateSearch(ctx, db, cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migrate search schema: %w", err)
	}

	entityStore := store.NewBunEntityStore(db)
	moveDetection := sync.MoveDetectionChecksumOnly
	if !*moveDetect {
		moveDetection = sync.MoveDetectionOff
	}

	synchronizer := sync.New(sync.Config{
		ProjectID:      cfg.ProjectID,
		Root:           cfg.RootPath,
		MoveDetection:  moveDetection,
		Store:          entityStore,
		Resolver:       resolver.New(entityStore, searchBackend),
		Search:         searchBackend,
		LoggerProvider: provider,
	})

	report, err := synchronizer.Run(ctx)
	if err != nil {
		return fmt.Errorf("initial sync: %w", err)
	}
	logSyncReport(provider.GetLogger("basicmemory.cli"), report)

	if !*watch {
		return nil
	}

	return runWatchLoop(ctx, cfg, synchronizer, provider)
}

// openStore dials either a SQLite file or a Postgres connection string,
// returning a dialected bun.DB and the matching SearchBackend, the same
// "caller constructs the dialect" split store.go's NewBunEntityStore doc
// comment describes.
func openStore(databaseURL string) (*bun.DB, interfaces.SearchBackend, error) {
	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		sqldb, err := sql.Open("postgres", databaseURL)
		if err != nil {
			return nil, nil, err
		}
		db := bun.NewDB(sqldb, pgdialect.New())
		return db, search.NewPostgresBackend(db), nil
	}

	sqldb, err := sql.Open("sqlite3", databaseURL)
	if err != nil {
		return nil, nil, err
	}
	db := bun.NewDB(sqldb, sqlitedialect.New())
	return db, search.NewSQLiteBackend(db), nil
}

func migrateSearch(ctx context.Context, db *bun.DB, databaseURL string) error {
	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		return search.MigratePostgres(ctx, db)
	}
	return search.MigrateSQLite(ctx, db)
}

// runWatchLoop drives the filesystem watcher, re-running a sync batch every
// time a debounced change event arrives, until ctx is cancelled.
func runWatchLoop(ctx context.Context, cfg project.Config, synchronizer *sync.Synchronizer, provider interfaces.LoggerProvider) error {
	logger := provider.GetLogger("basicmemory.cli")

	w, err := watcher.New(watcher.Config{Root: cfg.RootPath, LoggerProvider: provider})
	if err != nil {
		return fmt.Errorf("build watcher: %w", err)
	}
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer w.Stop()

	logger.Info("watching for changes", "root", cfg.RootPath)

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-w.Events():
			if !ok {
				return nil
			}
			report, err := synchronizer.Run(ctx)
			if err != nil {
				logger.Error("sync failed", "error", err)
				continue
			}
			logSyncReport(logger, report)
		}
	}
}

func logSyncReport(logger interfaces.Logger, report *sync.Report) {
	logger.Info("sync complete",
		"created", report.Created,
		"updated", report.Updated,
		"deleted", report.Deleted,
		"moved", report.Moved,
		"unchanged", report.Unchanged,
		"relations_set", report.RelationsSet,
		"errors", len(report.Errors),
	)
	for _, e := range report.Errors {
		logger.Warn("sync file error", "error", e.Error())
	}
}
