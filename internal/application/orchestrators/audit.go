package orchestrators

import (
	"context"
	"log/slog"
	"time"

	"deletionportal/internal/adapters/identity"
	auditStore "deletionportal/internal/adapters/storage/audit"
	domainAudit "deletionportal/internal/domain/audit"
	domain "deletionportal/internal/domain/deletion"
)

// AuditStore defines the store interface needed by the audit orchestrators.
type AuditStore interface {
	Save(ctx context.Context, event domainAudit.Event) error
	List(ctx context.Context, filter auditStore.Filter, limit int) ([]domainAudit.Event, error)
}

// AuditRecorder appends audit events. Write failures are logged and swallowed.
type AuditRecorder struct {
	Store      AuditStore
	GenerateID func() string
	Now        func() time.Time
}

func (a AuditRecorder) record(ctx context.Context, e domainAudit.Event) {
	if err := e.Validate(); err != nil {
		slog.Error("audit_event_invalid", "action", e.Action, "error", err)
		return
	}
	if err := a.Store.Save(ctx, e); err != nil {
		slog.Error("audit_event_save_failed", "action", e.Action, "actor_id", e.ActorID, "error", err)
	}
}

func (a AuditRecorder) newEvent(actorID, actorEmail string, category domainAudit.Category, action domainAudit.Action) domainAudit.Event {
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	return domainAudit.NewEvent(a.GenerateID(), now(), actorID, actorEmail, category, action)
}

// DeletionScheduled records a new deletion request.
func (a AuditRecorder) DeletionScheduled(ctx context.Context, req domain.Request) {
	a.record(ctx, a.newEvent(req.UserID, req.Email, domainAudit.CategoryPrivacy, domainAudit.ActionDeletionRequested).
		WithSeverity(domainAudit.SeverityWarning).
		WithResource(domainAudit.ResourceDeletionRequest, req.ID).
		WithDescription("deletion scheduled for "+req.DeletionDate.Format(domain.DisplayDateLayout)))
}

// DeletionCancelled records a withdrawn deletion request.
func (a AuditRecorder) DeletionCancelled(ctx context.Context, req domain.Request) {
	a.record(ctx, a.newEvent(req.UserID, req.Email, domainAudit.CategoryPrivacy, domainAudit.ActionDeletionCancelled).
		WithResource(domainAudit.ResourceDeletionRequest, req.ID).
		WithDescription("deletion for "+req.DeletionDate.Format(domain.DisplayDateLayout)+" cancelled"))
}

// SessionListener returns an identity listener that records sign-ins and sign-outs.
func (a AuditRecorder) SessionListener() identity.Listener {
	return func(ctx context.Context, e identity.Event) {
		action := domainAudit.ActionLogin
		if e.Kind == identity.SignedOut {
			action = domainAudit.ActionLogout
		}
		a.record(ctx, a.newEvent(e.Session.UserID, e.Session.Email, domainAudit.CategorySecurity, action))
	}
}

// MultiNotifier fans a notice out to every notifier in order.
type MultiNotifier []DeletionNotifier

// DeletionScheduled notifies each notifier.
func (m MultiNotifier) DeletionScheduled(ctx context.Context, req domain.Request) {
	for _, n := range m {
		n.DeletionScheduled(ctx, req)
	}
}

// DeletionCancelled notifies each notifier.
func (m MultiNotifier) DeletionCancelled(ctx context.Context, req domain.Request) {
	for _, n := range m {
		n.DeletionCancelled(ctx, req)
	}
}

// DefaultHistoryLimit bounds the events returned by ExecuteListHistory.
const DefaultHistoryLimit = 50

// ListHistoryDeps holds dependencies for ListHistory.
type ListHistoryDeps struct {
	Store AuditStore
	Limit int
}

// ExecuteListHistory returns the signed-in user's own audit trail, newest first.
// PRE: userID identifies a signed-in user
// POST: Returns at most deps.Limit events whose actor is userID
func ExecuteListHistory(ctx context.Context, userID string, deps ListHistoryDeps) ([]domainAudit.Event, error) {
	if userID == "" {
		return nil, &AuthError{Err: domain.ErrNotAuthenticated}
	}
	limit := deps.Limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	events, err := deps.Store.List(ctx, auditStore.Filter{ActorID: &userID}, limit)
	if err != nil {
		return nil, &RepositoryError{Op: "list history", Err: err}
	}
	if events == nil {
		events = []domainAudit.Event{}
	}
	return events, nil
}
