package audit

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domain "deletionportal/internal/domain/audit"
)

// PostgresStore implements Store on PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates an audit store backed by a pgx pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Save appends an audit event.
func (s *PostgresStore) Save(ctx context.Context, e domain.Event) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO audit_event (`+columns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.Timestamp.UTC(), string(e.Category), string(e.Action),
		string(e.Severity), e.ActorID, e.ActorEmail, e.ResourceID, e.ResourceType, e.Description)
	if err != nil {
		return fmt.Errorf("save audit event: %w", err)
	}
	return nil
}

// List returns audit events matching filter, newest first.
func (s *PostgresStore) List(ctx context.Context, filter Filter, limit int) ([]domain.Event, error) {
	where, args := filter.where(func(n int) string { return "$" + strconv.Itoa(n) })
	args = append(args, limit)
	query := `SELECT ` + columns + ` FROM audit_event` + where +
		` ORDER BY timestamp DESC LIMIT $` + strconv.Itoa(len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Event, error) {
		var e domain.Event
		err := row.Scan(&e.ID, &e.Timestamp, &e.Category, &e.Action, &e.Severity,
			&e.ActorID, &e.ActorEmail, &e.ResourceID, &e.ResourceType, &e.Description)
		e.Timestamp = e.Timestamp.UTC()
		return e, err
	})
}
