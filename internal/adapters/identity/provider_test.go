package identity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	domain "deletionportal/internal/domain/account"
)

type mockAccountStore struct {
	mu       sync.Mutex
	accounts map[string]domain.Account
}

// GetByEmail implements AccountStore for testing.
func (m *mockAccountStore) GetByEmail(_ context.Context, email string) (domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[domain.NormalizeEmail(email)]
	if !ok {
		return domain.Account{}, domain.ErrNotFound
	}
	return a, nil
}

// Save implements AccountStore for testing.
func (m *mockAccountStore) Save(_ context.Context, a domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[domain.NormalizeEmail(a.Email)] = a
	return nil
}

const testPassword = "correct horse battery"

func newTestProvider(t *testing.T, now *time.Time) (*LocalProvider, *mockAccountStore) {
	t.Helper()
	a := domain.Account{ID: "user-1", Email: "someone@example.com"}
	if err := a.SetPassword(testPassword); err != nil {
		t.Fatalf("SetPassword: %v", err)
	}
	store := &mockAccountStore{accounts: map[string]domain.Account{a.Email: a}}
	return NewLocalProvider(store, time.Hour, func() time.Time { return *now }), store
}

// TestSignIn_EmitsEvent tests a successful sign-in and its SignedIn notification.
func TestSignIn_EmitsEvent(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p, _ := newTestProvider(t, &now)

	var events []Event
	p.Subscribe(func(_ context.Context, e Event) { events = append(events, e) })

	sess, err := p.SignIn(context.Background(), "Someone@example.com", testPassword)
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if sess.UserID != "user-1" || sess.Token == "" {
		t.Errorf("unexpected session %+v", sess)
	}
	if len(events) != 1 || events[0].Kind != SignedIn || events[0].Session.Token != sess.Token {
		t.Errorf("expected one SignedIn event, got %+v", events)
	}
	if got, ok := p.CurrentSession(sess.Token); !ok || got.UserID != "user-1" {
		t.Errorf("CurrentSession = %+v, %v", got, ok)
	}
}

// TestSignIn_WrongPasswordLocksAccount tests the lockout after repeated failures.
func TestSignIn_WrongPasswordLocksAccount(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p, _ := newTestProvider(t, &now)
	ctx := context.Background()

	for i := 0; i < domain.MaxFailedLogins; i++ {
		if _, err := p.SignIn(ctx, "someone@example.com", "wrong password!"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}
	if _, err := p.SignIn(ctx, "someone@example.com", testPassword); !errors.Is(err, ErrAccountLocked) {
		t.Errorf("expected ErrAccountLocked, got %v", err)
	}

	now = now.Add(domain.LockoutDuration + time.Second)
	if _, err := p.SignIn(ctx, "someone@example.com", testPassword); err != nil {
		t.Errorf("expected sign-in after lock expiry, got %v", err)
	}
}

// TestSignIn_UnknownAccount tests that unknown emails look like bad credentials.
func TestSignIn_UnknownAccount(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p, _ := newTestProvider(t, &now)
	if _, err := p.SignIn(context.Background(), "nobody@example.com", testPassword); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

// TestSignOut_EmitsEvent tests sign-out and the unknown-token error.
func TestSignOut_EmitsEvent(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p, _ := newTestProvider(t, &now)
	ctx := context.Background()

	sess, err := p.SignIn(ctx, "someone@example.com", testPassword)
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}

	var kinds []EventKind
	unsubscribe := p.Subscribe(func(_ context.Context, e Event) { kinds = append(kinds, e.Kind) })

	if err := p.SignOut(ctx, sess.Token); err != nil {
		t.Fatalf("SignOut failed: %v", err)
	}
	if len(kinds) != 1 || kinds[0] != SignedOut {
		t.Errorf("expected one SignedOut event, got %v", kinds)
	}
	if _, ok := p.CurrentSession(sess.Token); ok {
		t.Error("session should be gone after sign-out")
	}
	if err := p.SignOut(ctx, sess.Token); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}

	unsubscribe()
	sess2, _ := p.SignIn(ctx, "someone@example.com", testPassword)
	_ = p.SignOut(ctx, sess2.Token)
	if len(kinds) != 1 {
		t.Errorf("unsubscribed listener should not receive events, got %v", kinds)
	}
}

// TestSweep_ExpiresSessions tests TTL expiry through Sweep and CurrentSession.
func TestSweep_ExpiresSessions(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p, _ := newTestProvider(t, &now)
	ctx := context.Background()

	first, _ := p.SignIn(ctx, "someone@example.com", testPassword)
	second, _ := p.SignIn(ctx, "someone@example.com", testPassword)

	var signedOut []string
	p.Subscribe(func(_ context.Context, e Event) {
		if e.Kind == SignedOut {
			signedOut = append(signedOut, e.Session.Token)
		}
	})

	now = now.Add(2 * time.Hour)
	if _, ok := p.CurrentSession(first.Token); ok {
		t.Error("expected expired session")
	}
	if n := p.Sweep(ctx); n != 1 {
		t.Errorf("expected Sweep to expire 1 remaining session, got %d", n)
	}
	if len(signedOut) != 2 || signedOut[0] != first.Token || signedOut[1] != second.Token {
		t.Errorf("expected SignedOut for both sessions, got %v", signedOut)
	}
}
