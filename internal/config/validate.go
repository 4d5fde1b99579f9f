package config

import (
	"fmt"
	"strings"
)

// placeholderPrefix marks values copied from the example config and never filled in.
const placeholderPrefix = "YOUR_"

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for missing and placeholder values. It returns a
// *ValidationError listing every problem found.
func Validate(cfg *Config) error {
	ve := &ValidationError{}

	for name, value := range map[string]string{
		"http.csrf_key":         cfg.HTTP.CSRFKey,
		"database.postgres_url": cfg.Database.PostgresURL,
		"email.resend_key":      cfg.Email.ResendKey,
		"seed.password":         cfg.Seed.Password,
	} {
		if strings.HasPrefix(value, placeholderPrefix) {
			ve.Add("%s still holds a placeholder value", name)
		}
	}

	switch cfg.Env {
	case EnvDevelopment, EnvProduction:
	default:
		ve.Add("env must be %q or %q, got %q", EnvDevelopment, EnvProduction, cfg.Env)
	}

	validateHTTP(cfg, ve)
	validateDatabase(cfg, ve)
	validateLog(cfg, ve)

	if cfg.Session.TTL <= 0 {
		ve.Add("session.ttl must be > 0")
	}
	if cfg.Session.SweepInterval <= 0 {
		ve.Add("session.sweep_interval must be > 0")
	}
	if cfg.Countdown.Interval <= 0 {
		ve.Add("countdown.interval must be > 0")
	}
	if cfg.Outbox.Enabled {
		if cfg.Outbox.Interval <= 0 || cfg.Outbox.BaseDelay <= 0 || cfg.Outbox.BatchSize <= 0 {
			ve.Add("outbox.interval, outbox.base_delay and outbox.batch_size must be > 0 when the outbox is enabled")
		}
		if cfg.Outbox.MaxDelay < cfg.Outbox.BaseDelay {
			ve.Add("outbox.max_delay must be >= outbox.base_delay")
		}
	}
	if (cfg.Seed.Email == "") != (cfg.Seed.Password == "") {
		ve.Add("seed.email and seed.password must be set together")
	}

	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateHTTP(cfg *Config, ve *ValidationError) {
	if cfg.HTTP.Addr == "" {
		ve.Add("http.addr is required")
	}
	if cfg.HTTP.RateLimit <= 0 {
		ve.Add("http.rate_limit must be > 0")
	}
	if cfg.HTTP.RateBurst <= 0 {
		ve.Add("http.rate_burst must be > 0")
	}
	if cfg.IsProduction() {
		if len(cfg.HTTP.CSRFKey) < 32 {
			ve.Add("http.csrf_key must be at least 32 bytes in production")
		}
		if !cfg.HTTP.SecureCookies {
			ve.Add("http.secure_cookies must be true in production")
		}
	}
}

func validateDatabase(cfg *Config, ve *ValidationError) {
	switch cfg.Database.Driver {
	case "sqlite":
		if cfg.Database.Path == "" {
			ve.Add("database.path is required for the sqlite driver")
		}
	case "postgres":
		if cfg.Database.PostgresURL == "" {
			ve.Add("database.postgres_url is required for the postgres driver")
		}
	default:
		ve.Add("database.driver must be sqlite or postgres, got %q", cfg.Database.Driver)
	}
	if cfg.Database.SlowQuery < 0 {
		ve.Add("database.slow_query must not be negative")
	}
}

func validateLog(cfg *Config, ve *ValidationError) {
	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		ve.Add("log.level must be debug, info, warn or error, got %q", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		ve.Add("log.format must be text or json, got %q", cfg.Log.Format)
	}
}
