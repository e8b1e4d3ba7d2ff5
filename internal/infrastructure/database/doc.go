// Package database provides SQLite connectivity for HomeWatt Core.
//
// It wraps database/sql with the mattn/go-sqlite3 driver and handles:
//   - Connection setup (WAL mode, busy timeout, foreign key enforcement)
//   - Embedded SQL schema migrations
//   - Health checks and lifecycle management
//
// # Foreign keys
//
// Foreign key enforcement is always enabled. The aggregation pipeline relies
// on it: a measurement for an unknown device must fail the bucket insert with
// a foreign key constraint violation so the placeholder recovery path can run.
//
// # Migrations
//
// Migrations are embedded via the migrations package and applied at startup:
//
//	db, err := database.Open(ctx, database.Config{Path: "data/homewatt.db"})
//	if err != nil { ... }
//	if err := db.Migrate(ctx); err != nil { ... }
//
// Migration files follow the naming convention
// YYYYMMDD_HHMMSS_description.up.sql (and .down.sql for rollback).
package database
