package portal

import (
	"context"
	"log/slog"
	"sync"

	"deletionportal/internal/adapters/identity"
)

// IdentityEvents is the identity provider surface the Registry listens to.
type IdentityEvents interface {
	SessionSource
	Subscribe(l identity.Listener) (unsubscribe func())
}

// Entry pairs a session's controller with the screen it renders to.
type Entry struct {
	Controller *Controller
	Screen     *Screen
}

// Registry keeps one Controller per signed-in session and routes identity events to it.
type Registry struct {
	deps        Deps
	events      IdentityEvents
	unsubscribe func()

	mu      sync.Mutex
	entries map[string]Entry
	closed  bool
}

// NewRegistry creates a registry subscribed to events. deps.Sessions defaults to events.
func NewRegistry(events IdentityEvents, deps Deps) *Registry {
	if deps.Sessions == nil {
		deps.Sessions = events
	}
	r := &Registry{
		deps:    deps,
		events:  events,
		entries: make(map[string]Entry),
	}
	r.unsubscribe = events.Subscribe(r.handle)
	return r
}

// Lookup returns the entry for token. A live session without an entry, such
// as one created before this registry, gets a fresh controller initialised from the session.
func (r *Registry) Lookup(ctx context.Context, token string) (Entry, bool) {
	r.mu.Lock()
	e, ok := r.entries[token]
	closed := r.closed
	r.mu.Unlock()
	if ok {
		return e, true
	}
	if closed {
		return Entry{}, false
	}
	sess, ok := r.events.CurrentSession(token)
	if !ok {
		return Entry{}, false
	}
	return r.open(ctx, sess), true
}

// Len returns the number of active controllers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Close unsubscribes from identity events and stops every countdown.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	entries := r.entries
	r.entries = make(map[string]Entry)
	r.mu.Unlock()

	r.unsubscribe()
	for _, e := range entries {
		e.Controller.Close()
	}
	slog.Info("portal_registry_closed", "controllers", len(entries))
}

func (r *Registry) handle(ctx context.Context, e identity.Event) {
	switch e.Kind {
	case identity.SignedIn:
		r.open(ctx, e.Session)
	case identity.SignedOut:
		r.mu.Lock()
		entry, ok := r.entries[e.Session.Token]
		delete(r.entries, e.Session.Token)
		r.mu.Unlock()
		if ok {
			entry.Controller.HandleSignedOut()
		}
	}
}

// open creates the entry for sess, replacing any existing one for the same token.
func (r *Registry) open(ctx context.Context, sess identity.Session) Entry {
	screen := NewScreen()
	e := Entry{Controller: NewController(r.deps, screen), Screen: screen}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return e
	}
	old, hadOld := r.entries[sess.Token]
	r.entries[sess.Token] = e
	r.mu.Unlock()

	if hadOld {
		old.Controller.Close()
	}
	e.Controller.HandleSignedIn(ctx, sess)
	slog.Debug("portal_event", "event", "controller_opened", "user_id", sess.UserID)
	return e
}
