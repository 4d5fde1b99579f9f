package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"deletionportal/internal/adapters/storage"
	"deletionportal/internal/config"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	command := flag.String("command", "up", "migrate command (up|status|down)")
	timeout := flag.Duration("timeout", time.Minute, "command timeout")
	target := flag.Int64("target", 0, "target version for down command (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := config.NewLogger(cfg.Log, os.Stderr).With("component", "migrate")

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db, closeDB, err := open(ctx, cfg.Database)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer closeDB()

	if err := run(ctx, log, db, cfg.Database.Driver, *command, *target); err != nil {
		log.Error("migration command failed", "command", *command, "error", err)
		closeDB()
		os.Exit(1)
	}
}

func open(ctx context.Context, dbc config.DatabaseConfig) (*sql.DB, func(), error) {
	if dbc.Driver == storage.DriverPostgres {
		pool, db, err := storage.OpenPostgres(ctx, dbc.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		return db, func() {
			db.Close()
			pool.Close()
		}, nil
	}
	db, err := storage.OpenSQLite(dbc.Path)
	if err != nil {
		return nil, nil, err
	}
	return db, func() { db.Close() }, nil
}

func run(ctx context.Context, log *slog.Logger, db *sql.DB, driver, command string, target int64) error {
	switch command {
	case "up":
		if err := storage.Migrate(ctx, db, driver); err != nil {
			return err
		}
		version, err := storage.SchemaVersion(ctx, db, driver)
		if err != nil {
			return err
		}
		log.Info("migrations_applied", "version", version)
	case "status":
		states, err := storage.MigrationStatus(ctx, db, driver)
		if err != nil {
			return err
		}
		for _, s := range states {
			log.Info("migration_status", "version", s.Version, "path", s.Path, "applied", s.Applied)
		}
	case "down":
		if err := storage.MigrateDown(ctx, db, driver, target); err != nil {
			return err
		}
		log.Info("migrations_rolled_back", "target", target)
	default:
		return fmt.Errorf("unsupported command %q", command)
	}
	return nil
}
