// Package database provides SQLite connectivity for halomqtt's light state.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Schema migrations from an fs.FS (normally the embedded migrations package)
//   - Connection pooling and lifecycle management
//
// Usage:
//
//	db, err := database.OpenAndMigrate(ctx, database.Config{
//	    Path:        cfg.Database.Path,
//	    WALMode:     cfg.Database.WALMode,
//	    BusyTimeout: cfg.Database.BusyTimeout,
//	}, migrations.FS)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with an
// optional matching .down.sql, and are applied oldest first, each in its own
// transaction, tracked in schema_migrations.
package database
