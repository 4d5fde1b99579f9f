package web

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"deletionportal/internal/adapters/http/middleware"
	"deletionportal/internal/adapters/identity"
	"deletionportal/internal/application/orchestrators"
	"deletionportal/internal/application/portal"
	"deletionportal/internal/metrics"
)

// Identity is the identity provider surface used by the HTTP layer.
type Identity interface {
	orchestrators.IdentityForLogin
	CurrentSession(token string) (identity.Session, bool)
}

// Deps holds everything NewMux wires into the handlers.
type Deps struct {
	Registry *portal.Registry
	Identity Identity

	// History serves /api/deletion/history. Nil answers 404.
	History orchestrators.AuditStore

	// Ping checks the database for /healthz. Nil reports the database as not configured.
	Ping func(ctx context.Context) error

	CSRFKey        []byte
	SecureCookies  bool
	TrustedOrigins []string
	SessionTTL     time.Duration

	RateLimit   float64
	RateBurst   int
	SlowRequest time.Duration

	// Done stops background cleanup when closed. Nil leaves cleanup off.
	Done <-chan struct{}
}

// Global registry instance (set by NewMux)
var portals *portal.Registry

// Global identity provider (set by NewMux)
var identityProvider Identity

// dbPing is used by /healthz (set by NewMux)
var dbPing func(ctx context.Context) error

// auditLog backs /api/deletion/history (set by NewMux)
var auditLog orchestrators.AuditStore

// routes lists every registered path, used to label request metrics.
var routes = []string{
	"/",
	"/login",
	"/logout",
	"/account/deletion",
	"/account/deletion/confirm",
	"/account/deletion/cancel",
	"/account/deletion/cancel/confirm",
	"/account/deletion/cancel/dismiss",
	"/account/deletion/refresh",
	"/api/deletion",
	"/api/deletion/history",
	"/ws/countdown",
	"/healthz",
}

// LoadCSRFKey decodes the hex CSRF secret (32 bytes). In production the key
// MUST be set; in development a random key is generated per startup.
func LoadCSRFKey(keyHex string, production bool) ([]byte, error) {
	if keyHex != "" {
		key, err := hex.DecodeString(keyHex)
		if err != nil || len(key) != 32 {
			return nil, errors.New("csrf key must be 64 hex characters (32 bytes)")
		}
		return key, nil
	}
	if production {
		return nil, errors.New("csrf key is required in production")
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	slog.Warn("csrf_key_generated", "reason", "no key configured, form tokens won't survive restart")
	return key, nil
}

// NewMux wires HTTP handlers for the portal.
// PRE: d.Registry and d.Identity are non-nil, len(d.CSRFKey) == 32
func NewMux(d Deps) http.Handler {
	portals = d.Registry
	identityProvider = d.Identity
	dbPing = d.Ping
	auditLog = d.History
	middleware.SecureCookies = d.SecureCookies
	if d.SessionTTL > 0 {
		middleware.SessionTTL = d.SessionTTL
	}

	mux := http.NewServeMux()
	registerRoutes(mux)

	rate, burst := d.RateLimit, d.RateBurst
	if rate <= 0 {
		rate = 10
	}
	if burst <= 0 {
		burst = 20
	}
	limiter := middleware.NewRateLimiter(rate, burst)
	if d.Done != nil {
		limiter.StartCleanup(d.Done)
	}

	// Apply middleware: Timing -> RateLimit -> Auth -> CSRF -> SecurityHeaders -> Mux
	return middleware.Chain(mux,
		middleware.SecurityHeaders,
		middleware.CSRF(d.CSRFKey, d.SecureCookies, d.TrustedOrigins),
		middleware.Auth(d.Identity),
		middleware.RateLimit(limiter),
		middleware.Timing(d.SlowRequest, routes),
	)
}

func registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", handleRoot)
	mux.HandleFunc("GET /login", handleLoginPage)
	mux.HandleFunc("POST /login", handleLogin)
	mux.HandleFunc("POST /logout", handleLogout)

	mux.Handle("GET /account/deletion", middleware.RequireAuth(http.HandlerFunc(handleDeletionPage)))
	mux.Handle("POST /account/deletion/confirm", middleware.RequireAuth(http.HandlerFunc(handleConfirmDeletion)))
	mux.Handle("POST /account/deletion/cancel", middleware.RequireAuth(http.HandlerFunc(handleRequestCancel)))
	mux.Handle("POST /account/deletion/cancel/confirm", middleware.RequireAuth(http.HandlerFunc(handleConfirmCancel)))
	mux.Handle("POST /account/deletion/cancel/dismiss", middleware.RequireAuth(http.HandlerFunc(handleDismissCancel)))
	mux.Handle("POST /account/deletion/refresh", middleware.RequireAuth(http.HandlerFunc(handleRefresh)))
	mux.Handle("GET /api/deletion", middleware.RequireAuth(http.HandlerFunc(handleDeletionAPI)))
	mux.Handle("GET /api/deletion/history", middleware.RequireAuth(http.HandlerFunc(handleHistoryAPI)))
	mux.Handle("GET /ws/countdown", middleware.RequireAuth(http.HandlerFunc(handleCountdownWS)))

	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /healthz", handleHealthz)
}
