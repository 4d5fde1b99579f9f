package deletion

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"deletionportal/internal/adapters/storage"
	domain "deletionportal/internal/domain/deletion"
)

const dateLayout = "2006-01-02T15:04:05.999999999Z07:00"

const selectColumns = `SELECT id, user_id, email, status, requested_at, deletion_date FROM account_deletion_request`

// SQLiteStore implements the deletion Store interface using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new deletion request store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// FindByUserID retrieves the deletion request owned by a user.
// PRE: userID is non-empty
// POST: Returns the request or domain.ErrNotFound
func (s *SQLiteStore) FindByUserID(ctx context.Context, userID string) (domain.Request, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE user_id = ?`, userID)
	r, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Request{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Request{}, fmt.Errorf("find deletion request: %w", err)
	}
	return r, nil
}

// Insert persists a new deletion request.
// PRE: r has been validated
// POST: Row inserted; a second row for the same user fails with domain.ErrAlreadyPending
func (s *SQLiteStore) Insert(ctx context.Context, r domain.Request) (domain.Request, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO account_deletion_request (id, user_id, email, status, requested_at, deletion_date)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.Email, r.Status,
		r.RequestedAt.UTC().Format(dateLayout), r.DeletionDate.UTC().Format(dateLayout))
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Request{}, domain.ErrAlreadyPending
		}
		return domain.Request{}, fmt.Errorf("insert deletion request: %w", err)
	}
	return s.findByID(ctx, r.ID)
}

// Delete removes a deletion request by id.
// PRE: id is non-empty
// POST: Row removed or domain.ErrNotFound
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM account_deletion_request WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete deletion request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete deletion request: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) findByID(ctx context.Context, id string) (domain.Request, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	r, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Request{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Request{}, fmt.Errorf("read back deletion request: %w", err)
	}
	return r, nil
}

// scanRequest scans a single row into a Request.
func scanRequest(row *sql.Row) (domain.Request, error) {
	var r domain.Request
	var requestedAt, deletionDate string
	if err := row.Scan(&r.ID, &r.UserID, &r.Email, &r.Status, &requestedAt, &deletionDate); err != nil {
		return domain.Request{}, err
	}
	var err error
	if r.RequestedAt, err = time.Parse(dateLayout, requestedAt); err != nil {
		return domain.Request{}, fmt.Errorf("parse requested_at: %w", err)
	}
	if r.DeletionDate, err = time.Parse(dateLayout, deletionDate); err != nil {
		return domain.Request{}, fmt.Errorf("parse deletion_date: %w", err)
	}
	return r, nil
}

// isUniqueViolation reports whether err is a SQLite constraint failure.
// The primary key is a fresh uuid, so a constraint failure here means the user_id index.
func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
	}
	return false
}
