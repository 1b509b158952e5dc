// Package database provides SQLite connection management for VendWatch Core.
//
// This package manages:
//   - Opening the SQLite database with WAL mode and busy timeout
//   - Schema migrations from embedded SQL files
//   - Health checks and transaction helpers
//
// # Durability
//
// Sales reports are financial records. The connection is configured so a
// committed transaction survives an application crash (WAL with
// synchronous=NORMAL); callers acknowledge ingests only after commit.
//
// # Concurrency
//
// SQLite supports one writer at a time. The pool is limited to a single
// connection, which serialises writes; the busy timeout absorbs short lock
// contention from readers.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: "./data/vendwatch.db", WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
package database
