// Package dbtest opens a migrated in-memory SQLite store for package tests.
package dbtest

import (
	"context"
	"database/sql"
	"testing"

	"ATLAS-backend/internal/platform/db"
)

func Open(t testing.TB) *sql.DB {
	t.Helper()
	conn, err := db.Connect(db.DatabaseConfig{Driver: db.DriverSQLite, Path: ":memory:"})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.Migrate(context.Background(), conn, db.DriverSQLite); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}
