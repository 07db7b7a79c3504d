// Package database provides SQLite storage for Fleetwake.
//
// This package manages:
//   - Opening the database with the right pragmas (WAL, busy_timeout,
//     foreign_keys)
//   - Schema migrations embedded in the binary
//   - Health checks and connection lifecycle
//
// # Concurrency
//
// SQLite supports a single writer. The pool is capped at one open
// connection so the API handlers and the presence poller serialise
// through the driver instead of racing for the write lock.
//
// # Migrations
//
// Migration files live in the top-level migrations directory and are
// embedded at build time. Filenames follow
// YYYYMMDD_HHMMSS_description.up.sql with an optional matching
// .down.sql. Each migration is applied in its own transaction and
// recorded in schema_migrations.
//
// # Usage
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
