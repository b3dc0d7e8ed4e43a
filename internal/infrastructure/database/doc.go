// Package database provides record store connectivity for Gatekeeper Core.
//
// Three drivers are supported behind one *DB wrapper:
//   - sqlite (github.com/mattn/go-sqlite3), the default, a single file with WAL
//   - postgres (github.com/jackc/pgx/v5 via database/sql)
//   - mysql (github.com/go-sql-driver/mysql), the store the registry started on
//
// Callers write SQL with ? placeholders; DB and Tx rebind them for PostgreSQL.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: "./data/gatekeeper.db", WALMode: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migrations are embedded by the migrations package and applied in version
// order. Each file holds one portable statement (VARCHAR keys, no
// driver-specific types) so the same set runs on every driver.
package database
