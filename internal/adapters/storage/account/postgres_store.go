package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domain "deletionportal/internal/domain/account"
)

const pgSelectAccount = `SELECT id, email, password_hash, created_at, failed_logins, locked_until FROM account`

// PostgresStore implements Store on PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates an account store backed by a pgx pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// GetByEmail retrieves an Account by normalized email.
func (s *PostgresStore) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	return scanPgAccount(s.pool.QueryRow(ctx, pgSelectAccount+` WHERE email = $1`, domain.NormalizeEmail(email)))
}

// Save inserts or updates an Account.
func (s *PostgresStore) Save(ctx context.Context, entity domain.Account) error {
	const query = `INSERT INTO account (id, email, password_hash, created_at, failed_logins, locked_until)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			password_hash = EXCLUDED.password_hash,
			failed_logins = EXCLUDED.failed_logins,
			locked_until = EXCLUDED.locked_until`

	var lockedUntil *time.Time
	if !entity.LockedUntil.IsZero() {
		t := entity.LockedUntil.UTC()
		lockedUntil = &t
	}
	_, err := s.pool.Exec(ctx, query,
		entity.ID,
		domain.NormalizeEmail(entity.Email),
		entity.PasswordHash,
		entity.CreatedAt.UTC(),
		entity.FailedLogins,
		lockedUntil,
	)
	if err != nil {
		return fmt.Errorf("save account: %w", err)
	}
	return nil
}

func scanPgAccount(row pgx.Row) (domain.Account, error) {
	var a domain.Account
	var lockedUntil *time.Time
	if err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.CreatedAt, &a.FailedLogins, &lockedUntil); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, domain.ErrNotFound
		}
		return domain.Account{}, err
	}
	if lockedUntil != nil {
		a.LockedUntil = lockedUntil.UTC()
	}
	return a, nil
}
