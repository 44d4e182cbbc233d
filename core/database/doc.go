// Package database handles the shadow-database connection and schema
// inspection.
//
// It provides a wrapper around GORM (Go Object Relational Mapping) to properly
// configure the SQLite file that holds the local index, with WAL journaling
// and a busy timeout tuned for the single-writer model.
//
// # Connect
//
// The Connect function opens the database file from configuration and verifies
// the connection with a ping before returning it.
//
// # Schema Inspection
//
// The package includes tools to inspect the live table layout, used by the
// status command to verify that the index file on disk matches the expected
// models before a sync touches it.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    log.Fatal("Database connection failed", err)
//	}
//
//	columns, err := database.GetTableColumns(db, "notes")
package database
