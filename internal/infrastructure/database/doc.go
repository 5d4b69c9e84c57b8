// Package database provides SQLite connectivity for the telegram store.
//
// This package manages:
//   - Database connection with WAL mode so readers are not blocked by the monitor
//   - Schema migrations embedded in the binary (see the migrations package)
//   - Connection lifecycle
//
// Security Considerations:
//   - All queries use parameterised statements
//   - Database file permissions are set to 0600 (owner read/write only)
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration Strategy:
//
// Migrations are additive. Each version has an .up.sql and a .down.sql file;
// new columns must be NULLABLE or have DEFAULT values.
package database
