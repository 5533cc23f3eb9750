// Package database provides SQLite connectivity for the IR sensor service.
//
// The database holds the execution audit of elevated probe runs. It is
// opened with WAL mode and a busy timeout, and its schema is managed by
// versioned migrations:
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with a
// matching .down.sql, and each one is applied in its own transaction.
package database
