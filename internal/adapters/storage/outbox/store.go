package outbox

import (
	"context"
	"time"

	domain "deletionportal/internal/domain/outbox"
)

// Store defines the interface for outbox entry persistence.
type Store interface {
	// Save persists an outbox entry.
	// PRE: entry has been validated
	// POST: Entry is persisted (insert or update)
	Save(ctx context.Context, e domain.Entry) error

	// ListPending returns entries that still need delivery and whose next attempt is due.
	// PRE: limit > 0
	// POST: Returns up to limit pending or retrying entries with NextAttemptAt <= now,
	// ordered by NextAttemptAt then CreatedAt
	ListPending(ctx context.Context, now time.Time, limit int) ([]domain.Entry, error)
}

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*PostgresStore)(nil)
)

const columns = "id, action_type, payload, status, attempts, max_attempts, last_attempted_at, next_attempt_at, created_at, external_id, error_message"

// nextAttemptAt falls back to CreatedAt for entries saved without a schedule.
func nextAttemptAt(e domain.Entry) time.Time {
	if e.NextAttemptAt.IsZero() {
		return e.CreatedAt.UTC()
	}
	return e.NextAttemptAt.UTC()
}
