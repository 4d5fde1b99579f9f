package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// OpenSQLite opens a SQLite database with WAL mode, foreign keys and a busy timeout.
// PRE: path is a file path or ":memory:"
// POST: Returns a reachable connection pool
func OpenSQLite(path string) (*sql.DB, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if path == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}
	return db, nil
}

// newMigrator builds a goose provider over the embedded migrations for driver.
func newMigrator(db *sql.DB, driver string) (*goose.Provider, error) {
	var dialect goose.Dialect
	switch driver {
	case DriverSQLite:
		dialect = goose.DialectSQLite3
	case DriverPostgres:
		dialect = goose.DialectPostgres
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	sub, err := fs.Sub(migrationsFS, "migrations/"+driver)
	if err != nil {
		return nil, fmt.Errorf("locate migrations: %w", err)
	}
	return goose.NewProvider(dialect, db, sub)
}

// Migrate applies all pending migrations.
// PRE: db is a valid connection for driver
// POST: Schema is at the latest version
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	p, err := newMigrator(db, driver)
	if err != nil {
		return err
	}
	results, err := p.Up(ctx)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	for _, r := range results {
		slog.Info("migration_applied", "driver", driver, "version", r.Source.Version, "duration", r.Duration)
	}
	return nil
}

// MigrateDown rolls back to target, or by one version when target is zero.
func MigrateDown(ctx context.Context, db *sql.DB, driver string, target int64) error {
	p, err := newMigrator(db, driver)
	if err != nil {
		return err
	}
	if target > 0 {
		_, err = p.DownTo(ctx, target)
	} else {
		_, err = p.Down(ctx)
	}
	if err != nil {
		return fmt.Errorf("roll back migrations: %w", err)
	}
	return nil
}

// MigrationState describes one embedded migration.
type MigrationState struct {
	Version int64
	Path    string
	Applied bool
}

// MigrationStatus lists every embedded migration and whether it has been applied.
func MigrationStatus(ctx context.Context, db *sql.DB, driver string) ([]MigrationState, error) {
	p, err := newMigrator(db, driver)
	if err != nil {
		return nil, err
	}
	statuses, err := p.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("migration status: %w", err)
	}
	out := make([]MigrationState, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, MigrationState{
			Version: s.Source.Version,
			Path:    s.Source.Path,
			Applied: s.State == goose.StateApplied,
		})
	}
	return out, nil
}

// SchemaVersion returns the version currently applied to db.
func SchemaVersion(ctx context.Context, db *sql.DB, driver string) (int64, error) {
	p, err := newMigrator(db, driver)
	if err != nil {
		return 0, err
	}
	return p.GetDBVersion(ctx)
}
