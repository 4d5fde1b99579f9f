package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment names.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config is the full server configuration.
type Config struct {
	Env       string          `yaml:"env"`
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Email     EmailConfig     `yaml:"email"`
	Log       LogConfig       `yaml:"log"`
	Session   SessionConfig   `yaml:"session"`
	Countdown CountdownConfig `yaml:"countdown"`
	Outbox    OutboxConfig    `yaml:"outbox"`
	Seed      SeedConfig      `yaml:"seed"`
}

// HTTPConfig configures the web listener and its middleware.
type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	CSRFKey         string        `yaml:"csrf_key"`
	SecureCookies   bool          `yaml:"secure_cookies"`
	RateLimit       float64       `yaml:"rate_limit"`
	RateBurst       int           `yaml:"rate_burst"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig selects and configures the storage backend.
type DatabaseConfig struct {
	Driver      string        `yaml:"driver"`
	Path        string        `yaml:"path"`
	PostgresURL string        `yaml:"postgres_url"`
	SlowQuery   time.Duration `yaml:"slow_query"`
}

// EmailConfig configures outbound notices. An empty ResendKey uses the noop sender.
type EmailConfig struct {
	ResendKey string `yaml:"resend_key"`
	From      string `yaml:"from"`
	ReplyTo   string `yaml:"reply_to"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SessionConfig configures the local identity provider.
type SessionConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// CountdownConfig configures the live countdown.
type CountdownConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// OutboxConfig schedules redelivery of notices that failed to send.
type OutboxConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Interval  time.Duration `yaml:"interval"`
	BaseDelay time.Duration `yaml:"base_delay"`
	MaxDelay  time.Duration `yaml:"max_delay"`
	BatchSize int           `yaml:"batch_size"`
}

// SeedConfig names an account created at startup when it does not exist.
type SeedConfig struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// Defaults returns a configuration suitable for local development.
func Defaults() *Config {
	return &Config{
		Env: EnvDevelopment,
		HTTP: HTTPConfig{
			Addr:            ":8080",
			RateLimit:       10,
			RateBurst:       20,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:    "sqlite",
			Path:      "deletionportal.db",
			SlowQuery: 50 * time.Millisecond,
		},
		Email: EmailConfig{
			From: "Account Portal <noreply@example.com>",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Session: SessionConfig{
			TTL:           24 * time.Hour,
			SweepInterval: 5 * time.Minute,
		},
		Countdown: CountdownConfig{
			Interval: time.Minute,
		},
		Outbox: OutboxConfig{
			Enabled:   true,
			Interval:  time.Minute,
			BaseDelay: 30 * time.Second,
			MaxDelay:  time.Hour,
			BatchSize: 50,
		},
	}
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// Load reads a YAML config file, applies env var overrides and validates the result.
// A missing file is not an error; defaults and the environment are used instead.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := ApplyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides maps PORTAL_* env vars to config fields.
func ApplyEnvOverrides(cfg *Config) error {
	setString(&cfg.Env, "PORTAL_ENV")
	setString(&cfg.HTTP.Addr, "PORTAL_ADDR")
	setString(&cfg.HTTP.CSRFKey, "PORTAL_CSRF_KEY")
	setString(&cfg.Database.Driver, "PORTAL_DB_DRIVER")
	setString(&cfg.Database.Path, "PORTAL_DB_PATH")
	setString(&cfg.Database.PostgresURL, "PORTAL_POSTGRES_URL")
	setString(&cfg.Email.ResendKey, "PORTAL_RESEND_KEY")
	setString(&cfg.Email.From, "PORTAL_RESEND_FROM")
	setString(&cfg.Email.ReplyTo, "PORTAL_REPLY_TO")
	setString(&cfg.Log.Level, "PORTAL_LOG_LEVEL")
	setString(&cfg.Log.Format, "PORTAL_LOG_FORMAT")
	setString(&cfg.Seed.Email, "PORTAL_SEED_EMAIL")
	setString(&cfg.Seed.Password, "PORTAL_SEED_PASSWORD")

	if v := os.Getenv("PORTAL_SECURE_COOKIES"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("PORTAL_SECURE_COOKIES: %w", err)
		}
		cfg.HTTP.SecureCookies = b
	}
	if v := os.Getenv("PORTAL_RATE_LIMIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("PORTAL_RATE_LIMIT: %w", err)
		}
		cfg.HTTP.RateLimit = f
	}
	for key, dst := range map[string]*time.Duration{
		"PORTAL_SLOW_QUERY":         &cfg.Database.SlowQuery,
		"PORTAL_SESSION_TTL":        &cfg.Session.TTL,
		"PORTAL_COUNTDOWN_INTERVAL": &cfg.Countdown.Interval,
		"PORTAL_OUTBOX_INTERVAL":    &cfg.Outbox.Interval,
	} {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = strings.TrimSpace(v)
	}
}
