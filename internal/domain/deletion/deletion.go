package deletion

import (
	"errors"
	"time"
)

// GracePeriod is the fixed interval between a request and its scheduled deletion.
const GracePeriod = 10 * 24 * time.Hour

// GracePeriodDays is GracePeriod expressed in whole days.
const GracePeriodDays = 10

// StatusPending is the only status ever written. Cancellation deletes the row.
const StatusPending = "pending"

// Domain errors.
var (
	ErrEmptyUserID      = errors.New("user_id is required")
	ErrEmptyRequestID   = errors.New("request_id is required")
	ErrEmptyEmail       = errors.New("email is required")
	ErrInvalidStatus    = errors.New("status must be pending")
	ErrInvalidSchedule  = errors.New("deletion_date must be exactly 10 days after requested_at")
	ErrNotFound         = errors.New("deletion request not found")
	ErrAlreadyPending   = errors.New("a deletion request is already pending for this account")
	ErrNoActiveRequest  = errors.New("no deletion request to cancel")
	ErrNotAuthenticated = errors.New("not signed in")
)

// Request is a user's scheduled account deletion.
// At most one exists per user; its existence is the sole signal that deletion is scheduled.
type Request struct {
	ID           string
	UserID       string
	Email        string // snapshot taken at creation
	Status       string
	RequestedAt  time.Time
	DeletionDate time.Time
}

// NewRequest builds a pending request whose deletion date is exactly one grace period after now.
// PRE: id, userID and email are non-empty
// POST: Status is pending, DeletionDate == RequestedAt + GracePeriod
func NewRequest(id, userID, email string, now time.Time) Request {
	return Request{
		ID:           id,
		UserID:       userID,
		Email:        email,
		Status:       StatusPending,
		RequestedAt:  now,
		DeletionDate: now.Add(GracePeriod),
	}
}

// Validate checks that the Request has valid data.
// PRE: Request fields may be empty
// POST: Returns nil if valid, error otherwise
// INVARIANT: DeletionDate is RequestedAt + GracePeriod
func (r *Request) Validate() error {
	if r.ID == "" {
		return ErrEmptyRequestID
	}
	if r.UserID == "" {
		return ErrEmptyUserID
	}
	if r.Email == "" {
		return ErrEmptyEmail
	}
	if r.Status != StatusPending {
		return ErrInvalidStatus
	}
	if r.RequestedAt.IsZero() {
		return errors.New("requested_at must be set")
	}
	if !r.DeletionDate.Equal(r.RequestedAt.Add(GracePeriod)) {
		return ErrInvalidSchedule
	}
	return nil
}

// IsDue returns true once the scheduled deletion date has been reached.
func (r *Request) IsDue(now time.Time) bool {
	return !now.Before(r.DeletionDate)
}
