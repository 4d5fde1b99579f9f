package storage

import (
	"context"
	"database/sql"
	"sort"
	"testing"
	"time"
)

// openTestDB creates a migrated in-memory SQLite database for testing.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := Migrate(context.Background(), db, DriverSQLite); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	return db
}

// getTableNames returns sorted table names from sqlite_master, excluding internal tables.
func getTableNames(t *testing.T, db *sql.DB) []string {
	t.Helper()
	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		t.Fatalf("failed to query sqlite_master: %v", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan table name: %v", err)
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TestMigrate_CreatesTables tests that migrations create the expected schema.
func TestMigrate_CreatesTables(t *testing.T) {
	db := openTestDB(t)

	want := []string{"account", "account_deletion_request", "audit_event", "goose_db_version", "outbox"}
	got := getTableNames(t, db)
	if len(got) != len(want) {
		t.Fatalf("expected tables %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("table %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

// TestMigrate_Idempotent tests that running migrations twice is a no-op.
func TestMigrate_Idempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := Migrate(ctx, db, DriverSQLite); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}
	version, err := SchemaVersion(ctx, db, DriverSQLite)
	if err != nil {
		t.Fatalf("SchemaVersion failed: %v", err)
	}
	if version != 3 {
		t.Errorf("expected schema version 3, got %d", version)
	}

	statuses, err := MigrationStatus(ctx, db, DriverSQLite)
	if err != nil {
		t.Fatalf("MigrationStatus failed: %v", err)
	}
	for _, s := range statuses {
		if !s.Applied {
			t.Errorf("expected migration %d to be applied", s.Version)
		}
	}
}

// TestMigrate_UniqueRequestPerUser tests the one-request-per-user index.
func TestMigrate_UniqueRequestPerUser(t *testing.T) {
	db := openTestDB(t)
	insert := `INSERT INTO account_deletion_request (id, user_id, email, status, requested_at, deletion_date)
		VALUES (?, 'user-1', 'a@example.com', 'pending', '2024-01-01T00:00:00Z', '2024-01-11T00:00:00Z')`

	if _, err := db.Exec(insert, "req-1"); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if _, err := db.Exec(insert, "req-2"); err == nil {
		t.Error("expected second request for the same user to be rejected")
	}
}

// TestMigrateDown_ToTarget tests rolling back to an earlier version.
func TestMigrateDown_ToTarget(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := MigrateDown(ctx, db, DriverSQLite, 1); err != nil {
		t.Fatalf("MigrateDown failed: %v", err)
	}
	version, err := SchemaVersion(ctx, db, DriverSQLite)
	if err != nil {
		t.Fatalf("SchemaVersion failed: %v", err)
	}
	if version != 1 {
		t.Errorf("expected schema version 1 after rollback, got %d", version)
	}
	for _, name := range getTableNames(t, db) {
		if name == "outbox" || name == "audit_event" {
			t.Errorf("table %s should be dropped", name)
		}
	}
}

// TestMigrate_UnknownDriver tests that an unsupported driver is rejected.
func TestMigrate_UnknownDriver(t *testing.T) {
	db := openTestDB(t)
	if err := Migrate(context.Background(), db, "mysql"); err == nil {
		t.Error("expected error for unsupported driver")
	}
}

// TestTimedDB_Passthrough tests that TimedDB delegates to the wrapped connection.
func TestTimedDB_Passthrough(t *testing.T) {
	db := openTestDB(t)
	timed := NewTimedDB(db, time.Nanosecond)
	ctx := context.Background()

	if _, err := timed.ExecContext(ctx, "INSERT INTO account (id, email, created_at) VALUES ('a1', 'a@example.com', '2024-01-01T00:00:00Z')"); err != nil {
		t.Fatalf("ExecContext failed: %v", err)
	}
	var n int
	if err := timed.QueryRowContext(ctx, "SELECT COUNT(*) FROM account").Scan(&n); err != nil {
		t.Fatalf("QueryRowContext failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 account, got %d", n)
	}
	if timed.RawDB() != db {
		t.Error("RawDB should return the wrapped connection")
	}
	if err := timed.PingContext(ctx); err != nil {
		t.Errorf("PingContext failed: %v", err)
	}
}
