package deletion

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	domain "deletionportal/internal/domain/deletion"
)

const (
	pgSelectByUser = `SELECT id, user_id, email, status, requested_at, deletion_date
		FROM account_deletion_request WHERE user_id = $1`
	pgInsert = `INSERT INTO account_deletion_request (id, user_id, email, status, requested_at, deletion_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, user_id, email, status, requested_at, deletion_date`
	pgDelete = `DELETE FROM account_deletion_request WHERE id = $1`
)

// PostgresStore implements the deletion Store interface on PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a deletion request store backed by a pgx pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// FindByUserID retrieves the deletion request owned by a user.
func (s *PostgresStore) FindByUserID(ctx context.Context, userID string) (domain.Request, error) {
	r, err := scanPgRequest(s.pool.QueryRow(ctx, pgSelectByUser, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Request{}, domain.ErrNotFound
		}
		return domain.Request{}, fmt.Errorf("find deletion request: %w", err)
	}
	return r, nil
}

// Insert persists a new deletion request, returning the stored row.
func (s *PostgresStore) Insert(ctx context.Context, r domain.Request) (domain.Request, error) {
	stored, err := scanPgRequest(s.pool.QueryRow(ctx, pgInsert,
		r.ID, r.UserID, r.Email, r.Status, r.RequestedAt.UTC(), r.DeletionDate.UTC()))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.Request{}, domain.ErrAlreadyPending
		}
		return domain.Request{}, fmt.Errorf("insert deletion request: %w", err)
	}
	return stored, nil
}

// Delete removes a deletion request by id.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, pgDelete, id)
	if err != nil {
		return fmt.Errorf("delete deletion request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanPgRequest(row pgx.Row) (domain.Request, error) {
	var r domain.Request
	if err := row.Scan(&r.ID, &r.UserID, &r.Email, &r.Status, &r.RequestedAt, &r.DeletionDate); err != nil {
		return domain.Request{}, err
	}
	r.RequestedAt = r.RequestedAt.UTC()
	r.DeletionDate = r.DeletionDate.UTC()
	return r, nil
}
