package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	emailPkg "deletionportal/internal/adapters/email"
	web "deletionportal/internal/adapters/http"
	"deletionportal/internal/adapters/identity"
	"deletionportal/internal/adapters/storage"
	accountStore "deletionportal/internal/adapters/storage/account"
	auditStore "deletionportal/internal/adapters/storage/audit"
	deletionStore "deletionportal/internal/adapters/storage/deletion"
	outboxStore "deletionportal/internal/adapters/storage/outbox"
	"deletionportal/internal/application/orchestrators"
	"deletionportal/internal/application/portal"
	"deletionportal/internal/config"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

// stores bundles the backend chosen by config.
type stores struct {
	accounts accountStore.Store
	requests deletionStore.Store
	outbox   outboxStore.Store
	audit    auditStore.Store
	ping     func(ctx context.Context) error
	close    func()
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	slog.SetDefault(config.NewLogger(cfg.Log, os.Stderr))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer st.close()
	slog.Info("database_ready", "driver", cfg.Database.Driver)

	// Seed a local account for development (idempotent)
	if cfg.Seed.Email != "" {
		seedDeps := orchestrators.SeedAccountDeps{AccountStore: st.accounts, GenerateID: uuid.NewString, Now: time.Now}
		seedInput := orchestrators.SeedAccountInput{Email: cfg.Seed.Email, Password: cfg.Seed.Password}
		if err := orchestrators.ExecuteSeedAccount(ctx, seedInput, seedDeps); err != nil {
			log.Fatalf("failed to seed account: %v", err)
		}
	}

	// Configure email sender
	var sender emailPkg.Sender
	if cfg.Email.ResendKey != "" {
		sender = emailPkg.NewResendSender(cfg.Email.ResendKey, cfg.Email.From, cfg.Email.ReplyTo)
		slog.Info("email_sender_configured", "sender", "resend")
	} else {
		sender = emailPkg.NewNoopSender()
		if cfg.IsProduction() {
			slog.Warn("email_sender_configured", "sender", "noop", "reason", "resend key not set, deletion notices are DISABLED")
		} else {
			slog.Info("email_sender_configured", "sender", "noop")
		}
	}

	done := make(chan struct{})
	defer close(done)

	provider := identity.NewLocalProvider(st.accounts, cfg.Session.TTL, nil)
	identity.StartSweeper(provider, cfg.Session.SweepInterval, done)

	recorder := orchestrators.AuditRecorder{Store: st.audit, GenerateID: uuid.NewString, Now: time.Now}
	defer provider.Subscribe(recorder.SessionListener())()

	notifier := orchestrators.EmailNotifier{Sender: sender}
	if cfg.Outbox.Enabled {
		notifier.Outbox = st.outbox
		notifier.GenerateID = uuid.NewString
		notifier.Now = time.Now
		stopRetry := orchestrators.StartOutboxRetryScheduler(ctx,
			orchestrators.OutboxRetryDeps{Store: st.outbox, Sender: sender, Now: time.Now},
			orchestrators.OutboxRetryConfig{
				Enabled:   true,
				Interval:  cfg.Outbox.Interval,
				BaseDelay: cfg.Outbox.BaseDelay,
				MaxDelay:  cfg.Outbox.MaxDelay,
				BatchSize: cfg.Outbox.BatchSize,
			}.WithDefaults())
		defer stopRetry()
	}

	registry := portal.NewRegistry(provider, portal.Deps{
		Identity:     provider,
		Store:        st.requests,
		Notifier:     orchestrators.MultiNotifier{notifier, recorder},
		GenerateID:   uuid.NewString,
		Now:          time.Now,
		TickInterval: cfg.Countdown.Interval,
	})
	defer registry.Close()

	csrfKey, err := web.LoadCSRFKey(cfg.HTTP.CSRFKey, cfg.IsProduction())
	if err != nil {
		log.Fatalf("invalid csrf key: %v", err)
	}

	mux := web.NewMux(web.Deps{
		Registry:      registry,
		Identity:      provider,
		History:       st.audit,
		Ping:          st.ping,
		CSRFKey:       csrfKey,
		SecureCookies: cfg.HTTP.SecureCookies,
		SessionTTL:    cfg.Session.TTL,
		RateLimit:     cfg.HTTP.RateLimit,
		RateBurst:     cfg.HTTP.RateBurst,
		Done:          done,
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server_starting", "version", version, "addr", cfg.HTTP.Addr, "env", cfg.Env)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	case <-ctx.Done():
		slog.Info("server_stopping", "reason", "signal")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		// Hijacked websocket connections are not tracked by Shutdown; closing
		// the registry stops their tickers and the next write fails.
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server_shutdown_failed", "error", err)
		}
	}
}

// openStores opens the configured backend, migrates it and builds the stores.
func openStores(ctx context.Context, dbc config.DatabaseConfig) (*stores, error) {
	switch dbc.Driver {
	case storage.DriverPostgres:
		pool, db, err := storage.OpenPostgres(ctx, dbc.PostgresURL)
		if err != nil {
			return nil, err
		}
		if err := storage.Migrate(ctx, db, storage.DriverPostgres); err != nil {
			db.Close()
			pool.Close()
			return nil, err
		}
		return &stores{
			accounts: accountStore.NewPostgresStore(pool),
			requests: deletionStore.NewPostgresStore(pool),
			outbox:   outboxStore.NewPostgresStore(pool),
			audit:    auditStore.NewPostgresStore(pool),
			ping:     pool.Ping,
			close: func() {
				db.Close()
				pool.Close()
			},
		}, nil
	default:
		db, err := storage.OpenSQLite(dbc.Path)
		if err != nil {
			return nil, err
		}
		if err := storage.Migrate(ctx, db, storage.DriverSQLite); err != nil {
			db.Close()
			return nil, err
		}
		timed := storage.NewTimedDB(db, dbc.SlowQuery)
		return &stores{
			accounts: accountStore.NewSQLiteStore(timed),
			requests: deletionStore.NewSQLiteStore(timed),
			outbox:   outboxStore.NewSQLiteStore(timed),
			audit:    auditStore.NewSQLiteStore(timed),
			ping:     timed.PingContext,
			close:    func() { closeDB(db) },
		}, nil
	}
}

func closeDB(db *sql.DB) {
	if err := db.Close(); err != nil {
		slog.Warn("database_close_failed", "error", err)
	}
}
