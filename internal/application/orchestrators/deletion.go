package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"time"

	domain "deletionportal/internal/domain/deletion"
	"deletionportal/internal/metrics"
)

// DeletionStore defines the store interface needed by the deletion orchestrators.
type DeletionStore interface {
	FindByUserID(ctx context.Context, userID string) (domain.Request, error)
	Insert(ctx context.Context, r domain.Request) (domain.Request, error)
	Delete(ctx context.Context, id string) error
}

// DeletionNotifier is told about schedule changes. Implementations must not fail the caller.
type DeletionNotifier interface {
	DeletionScheduled(ctx context.Context, req domain.Request)
	DeletionCancelled(ctx context.Context, req domain.Request)
}

// --- Load ---

// LoadDeletionDeps holds dependencies for LoadDeletion.
type LoadDeletionDeps struct {
	Store DeletionStore
}

// ExecuteLoadDeletion fetches the user's pending request.
// PRE: userID is non-empty
// POST: Returns the request, nil when none exists, or a *RepositoryError
func ExecuteLoadDeletion(ctx context.Context, userID string, deps LoadDeletionDeps) (*domain.Request, error) {
	if userID == "" {
		return nil, &AuthError{Err: domain.ErrNotAuthenticated}
	}
	req, err := deps.Store.FindByUserID(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		slog.Error("deletion_event", "event", "load_failed", "user_id", userID, "error", err)
		return nil, &RepositoryError{Op: "load", Err: err}
	}
	return &req, nil
}

// --- Request ---

// RequestDeletionInput carries input for RequestDeletion.
type RequestDeletionInput struct {
	UserID string
	Email  string
}

// RequestDeletionDeps holds dependencies for RequestDeletion.
type RequestDeletionDeps struct {
	Store      DeletionStore
	Notifier   DeletionNotifier
	GenerateID func() string
	Now        func() time.Time
}

// ExecuteRequestDeletion schedules the user's account for deletion.
// PRE: input.UserID identifies a signed-in user
// POST: A pending request exists with DeletionDate == RequestedAt + GracePeriod, and is returned
// INVARIANT: At most one request per user
func ExecuteRequestDeletion(ctx context.Context, input RequestDeletionInput, deps RequestDeletionDeps) (domain.Request, error) {
	if input.UserID == "" {
		return domain.Request{}, &AuthError{Err: domain.ErrNotAuthenticated}
	}

	_, err := deps.Store.FindByUserID(ctx, input.UserID)
	switch {
	case err == nil:
		metrics.DeletionOutcome("request", "rejected")
		return domain.Request{}, domain.ErrAlreadyPending
	case !errors.Is(err, domain.ErrNotFound):
		metrics.DeletionOutcome("request", "error")
		return domain.Request{}, &RepositoryError{Op: "request", Err: err}
	}

	req := domain.NewRequest(deps.GenerateID(), input.UserID, input.Email, deps.Now())
	if err := req.Validate(); err != nil {
		return domain.Request{}, &ValidationError{Message: err.Error()}
	}

	stored, err := deps.Store.Insert(ctx, req)
	if errors.Is(err, domain.ErrAlreadyPending) {
		metrics.DeletionOutcome("request", "rejected")
		return domain.Request{}, err
	}
	if err != nil {
		slog.Error("deletion_event", "event", "request_failed", "user_id", input.UserID, "error", err)
		metrics.DeletionOutcome("request", "error")
		return domain.Request{}, &RepositoryError{Op: "request", Err: err}
	}

	slog.Info("deletion_event", "event", "deletion_requested",
		"request_id", stored.ID, "user_id", stored.UserID, "deletion_date", stored.DeletionDate)
	metrics.DeletionOutcome("request", "success")

	if deps.Notifier != nil {
		deps.Notifier.DeletionScheduled(ctx, stored)
	}
	return stored, nil
}

// --- Cancel ---

// CancelDeletionDeps holds dependencies for CancelDeletion.
type CancelDeletionDeps struct {
	Store    DeletionStore
	Notifier DeletionNotifier
}

// ExecuteCancelDeletion hard-deletes the request.
// PRE: req is the user's current request
// POST: No request exists for req.ID; a request already gone counts as cancelled
func ExecuteCancelDeletion(ctx context.Context, req domain.Request, deps CancelDeletionDeps) error {
	if req.ID == "" {
		return &ValidationError{Message: domain.ErrNoActiveRequest.Error()}
	}

	err := deps.Store.Delete(ctx, req.ID)
	if errors.Is(err, domain.ErrNotFound) {
		slog.Info("deletion_event", "event", "cancel_already_gone", "request_id", req.ID, "user_id", req.UserID)
		metrics.DeletionOutcome("cancel", "success")
		return nil
	}
	if err != nil {
		slog.Error("deletion_event", "event", "cancel_failed", "request_id", req.ID, "error", err)
		metrics.DeletionOutcome("cancel", "error")
		return &RepositoryError{Op: "cancel", Err: err}
	}

	slog.Info("deletion_event", "event", "deletion_cancelled", "request_id", req.ID, "user_id", req.UserID)
	metrics.DeletionOutcome("cancel", "success")

	if deps.Notifier != nil {
		deps.Notifier.DeletionCancelled(ctx, req)
	}
	return nil
}
