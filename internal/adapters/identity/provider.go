package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"sync"
	"time"

	domain "deletionportal/internal/domain/account"
	"deletionportal/internal/metrics"
)

// DefaultSessionTTL is how long a session stays valid after sign-in.
const DefaultSessionTTL = 24 * time.Hour

// Provider errors.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountLocked      = errors.New("account is locked due to too many failed attempts")
	ErrSessionNotFound    = errors.New("session not found or expired")
)

// Session is an authenticated identity bound to an opaque token.
type Session struct {
	Token     string
	UserID    string
	Email     string
	CreatedAt time.Time
}

// EventKind distinguishes session change notifications.
type EventKind int

const (
	SignedIn EventKind = iota + 1
	SignedOut
)

// String returns the event name used in logs.
func (k EventKind) String() string {
	switch k {
	case SignedIn:
		return "signed_in"
	case SignedOut:
		return "signed_out"
	default:
		return "unknown"
	}
}

// Event is delivered to listeners whenever a session starts or ends.
type Event struct {
	Kind    EventKind
	Session Session
}

// Listener receives session change events. It runs on the goroutine that caused the change.
type Listener func(ctx context.Context, e Event)

// Provider is the identity provider consumed by the application.
type Provider interface {
	CurrentSession(token string) (Session, bool)
	Subscribe(l Listener) (unsubscribe func())
	SignIn(ctx context.Context, email, password string) (Session, error)
	SignOut(ctx context.Context, token string) error
}

// AccountStore defines the account persistence needed by LocalProvider.
type AccountStore interface {
	GetByEmail(ctx context.Context, email string) (domain.Account, error)
	Save(ctx context.Context, a domain.Account) error
}

// LocalProvider authenticates against local accounts and keeps sessions in memory.
type LocalProvider struct {
	accounts AccountStore
	ttl      time.Duration
	now      func() time.Time

	mu        sync.Mutex
	sessions  map[string]Session
	listeners map[int]Listener
	nextID    int
}

// Compile-time check that LocalProvider satisfies Provider.
var _ Provider = (*LocalProvider)(nil)

// NewLocalProvider creates a provider. A zero ttl uses DefaultSessionTTL; a nil now uses time.Now.
func NewLocalProvider(accounts AccountStore, ttl time.Duration, now func() time.Time) *LocalProvider {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if now == nil {
		now = time.Now
	}
	return &LocalProvider{
		accounts:  accounts,
		ttl:       ttl,
		now:       now,
		sessions:  make(map[string]Session),
		listeners: make(map[int]Listener),
	}
}

// Subscribe registers l for session change events.
// POST: l receives every later event until unsubscribe is called
func (p *LocalProvider) Subscribe(l Listener) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = l
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.listeners, id)
	}
}

// CurrentSession returns the live session for token. An expired session is
// removed and announced as SignedOut.
func (p *LocalProvider) CurrentSession(token string) (Session, bool) {
	if token == "" {
		return Session{}, false
	}
	p.mu.Lock()
	sess, ok := p.sessions[token]
	if !ok {
		p.mu.Unlock()
		return Session{}, false
	}
	if p.now().Sub(sess.CreatedAt) <= p.ttl {
		p.mu.Unlock()
		return sess, true
	}
	delete(p.sessions, token)
	p.mu.Unlock()

	slog.Info("auth_event", "event", "session_expired", "user_id", sess.UserID)
	p.emit(context.Background(), Event{Kind: SignedOut, Session: sess})
	return Session{}, false
}

// SignIn verifies credentials and starts a session.
// PRE: email and password are non-empty
// POST: On success a SignedIn event has been delivered; failures update the lockout counter
func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (Session, error) {
	now := p.now()
	acct, err := p.accounts.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		slog.Info("auth_event", "event", "login_failed", "email", email, "reason", "not_found")
		metrics.AuthEvent("login_failed")
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}

	if acct.IsLocked(now) {
		slog.Info("auth_event", "event", "login_blocked", "email", email, "reason", "locked")
		metrics.AuthEvent("login_blocked")
		return Session{}, ErrAccountLocked
	}

	if err := acct.CheckPassword(password); err != nil {
		acct.RecordFailedLogin(now)
		if saveErr := p.accounts.Save(ctx, acct); saveErr != nil {
			slog.Error("auth_event_save_failed", "email", email, "error", saveErr)
		}
		slog.Info("auth_event", "event", "login_failed", "email", email, "reason", "wrong_password", "failed_logins", acct.FailedLogins)
		metrics.AuthEvent("login_failed")
		return Session{}, ErrInvalidCredentials
	}

	if acct.FailedLogins > 0 || !acct.LockedUntil.IsZero() {
		acct.ResetFailedLogins()
		if err := p.accounts.Save(ctx, acct); err != nil {
			slog.Error("auth_event_save_failed", "email", email, "error", err)
		}
	}

	token, err := generateToken()
	if err != nil {
		return Session{}, err
	}
	sess := Session{Token: token, UserID: acct.ID, Email: acct.Email, CreatedAt: now}

	p.mu.Lock()
	p.sessions[token] = sess
	p.mu.Unlock()

	slog.Info("auth_event", "event", "login_success", "email", acct.Email, "user_id", acct.ID)
	metrics.AuthEvent("login_success")
	p.emit(ctx, Event{Kind: SignedIn, Session: sess})
	return sess, nil
}

// SignOut ends the session for token.
// POST: Session removed and a SignedOut event delivered, or ErrSessionNotFound
func (p *LocalProvider) SignOut(ctx context.Context, token string) error {
	p.mu.Lock()
	sess, ok := p.sessions[token]
	delete(p.sessions, token)
	p.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	slog.Info("auth_event", "event", "logout", "user_id", sess.UserID)
	metrics.AuthEvent("logout")
	p.emit(ctx, Event{Kind: SignedOut, Session: sess})
	return nil
}

// Sweep removes sessions older than the TTL and announces each as SignedOut.
// Returns the number of sessions removed.
func (p *LocalProvider) Sweep(ctx context.Context) int {
	now := p.now()
	p.mu.Lock()
	var expired []Session
	for token, sess := range p.sessions {
		if now.Sub(sess.CreatedAt) > p.ttl {
			expired = append(expired, sess)
			delete(p.sessions, token)
		}
	}
	p.mu.Unlock()

	for _, sess := range expired {
		slog.Info("auth_event", "event", "session_expired", "user_id", sess.UserID)
		p.emit(ctx, Event{Kind: SignedOut, Session: sess})
	}
	return len(expired)
}

// StartSweeper periodically expires stale sessions until stopCh is closed.
func StartSweeper(p *LocalProvider, interval time.Duration, stopCh <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := p.Sweep(context.Background()); n > 0 {
					slog.Info("session_sweep", "expired", n)
				}
			case <-stopCh:
				slog.Info("session_sweeper_stopped")
				return
			}
		}
	}()
}

func (p *LocalProvider) emit(ctx context.Context, e Event) {
	p.mu.Lock()
	listeners := make([]Listener, 0, len(p.listeners))
	for _, l := range p.listeners {
		listeners = append(listeners, l)
	}
	p.mu.Unlock()
	for _, l := range listeners {
		l(ctx, e)
	}
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
