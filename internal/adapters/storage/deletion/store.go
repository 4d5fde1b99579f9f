package deletion

import (
	"context"

	domain "deletionportal/internal/domain/deletion"
)

// Store defines the interface for deletion request persistence.
// Each user owns at most one request; implementations enforce this with a unique index.
type Store interface {
	// FindByUserID retrieves the request owned by userID.
	// PRE: userID is non-empty
	// POST: Returns the request, or domain.ErrNotFound when none exists
	FindByUserID(ctx context.Context, userID string) (domain.Request, error)

	// Insert persists a new request and returns the stored record.
	// PRE: r has been validated
	// POST: Request is persisted, or domain.ErrAlreadyPending if the user already has one
	Insert(ctx context.Context, r domain.Request) (domain.Request, error)

	// Delete removes a request by id (hard delete).
	// PRE: id is non-empty
	// POST: Request is gone, or domain.ErrNotFound if it did not exist
	Delete(ctx context.Context, id string) error
}

// Ensure both implementations satisfy Store.
var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
