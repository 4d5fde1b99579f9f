package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domain "deletionportal/internal/domain/outbox"
)

// PostgresStore implements Store on PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates an outbox store backed by a pgx pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Save upserts an outbox entry.
func (s *PostgresStore) Save(ctx context.Context, e domain.Entry) error {
	const query = `INSERT INTO outbox (` + columns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			attempts = EXCLUDED.attempts,
			max_attempts = EXCLUDED.max_attempts,
			last_attempted_at = EXCLUDED.last_attempted_at,
			next_attempt_at = EXCLUDED.next_attempt_at,
			external_id = EXCLUDED.external_id,
			error_message = EXCLUDED.error_message`

	var lastAttemptedAt *time.Time
	if !e.LastAttemptedAt.IsZero() {
		t := e.LastAttemptedAt.UTC()
		lastAttemptedAt = &t
	}
	_, err := s.pool.Exec(ctx, query,
		e.ID, e.ActionType, e.Payload, e.Status, e.Attempts, e.MaxAttempts,
		lastAttemptedAt, nextAttemptAt(e), e.CreatedAt.UTC(), e.ExternalID, e.ErrorMessage)
	if err != nil {
		return fmt.Errorf("save outbox entry: %w", err)
	}
	return nil
}

// ListPending returns due entries that still need delivery.
func (s *PostgresStore) ListPending(ctx context.Context, now time.Time, limit int) ([]domain.Entry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+columns+` FROM outbox WHERE status = ANY($1) AND next_attempt_at <= $2
		 ORDER BY next_attempt_at ASC, created_at ASC LIMIT $3`,
		[]string{domain.StatusPending, domain.StatusRetrying}, now.UTC(), limit)
	if err != nil {
		return nil, err
	}
	return collectPgEntries(rows)
}

func scanPgEntry(row pgx.Row) (domain.Entry, error) {
	var e domain.Entry
	var lastAttemptedAt *time.Time
	err := row.Scan(&e.ID, &e.ActionType, &e.Payload, &e.Status, &e.Attempts, &e.MaxAttempts,
		&lastAttemptedAt, &e.NextAttemptAt, &e.CreatedAt, &e.ExternalID, &e.ErrorMessage)
	if err != nil {
		return domain.Entry{}, err
	}
	e.CreatedAt = e.CreatedAt.UTC()
	e.NextAttemptAt = e.NextAttemptAt.UTC()
	if lastAttemptedAt != nil {
		e.LastAttemptedAt = lastAttemptedAt.UTC()
	}
	return e, nil
}

func collectPgEntries(rows pgx.Rows) ([]domain.Entry, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Entry, error) {
		return scanPgEntry(row)
	})
}
