// Package db provides the embedded database schemas.
package db

import _ "embed"

// PostgresSchema contains the DDL statements for the PostgreSQL store.
//
//go:embed migrations/postgres/001_schema.sql
var PostgresSchema string

// SQLiteSchema contains the DDL statements for the SQLite store.
//
//go:embed migrations/sqlite/001_schema.sql
var SQLiteSchema string
