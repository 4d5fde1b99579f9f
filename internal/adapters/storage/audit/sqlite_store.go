package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"deletionportal/internal/adapters/storage"
	domain "deletionportal/internal/domain/audit"
)

const timeLayout = "2006-01-02T15:04:05.999999999Z07:00"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new audit event store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Save appends an audit event.
func (s *SQLiteStore) Save(ctx context.Context, e domain.Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_event (`+columns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Timestamp.UTC().Format(timeLayout), string(e.Category), string(e.Action),
		string(e.Severity), e.ActorID, e.ActorEmail, e.ResourceID, e.ResourceType, e.Description)
	if err != nil {
		return fmt.Errorf("save audit event: %w", err)
	}
	return nil
}

// List returns audit events matching filter, newest first.
func (s *SQLiteStore) List(ctx context.Context, filter Filter, limit int) ([]domain.Event, error) {
	where, args := filter.where(func(int) string { return "?" })
	args = append(args, limit)
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+columns+" FROM audit_event"+where+" ORDER BY timestamp DESC LIMIT ?", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func scanEvent(rows *sql.Rows) (domain.Event, error) {
	var e domain.Event
	var timestamp string
	err := rows.Scan(&e.ID, &timestamp, &e.Category, &e.Action, &e.Severity,
		&e.ActorID, &e.ActorEmail, &e.ResourceID, &e.ResourceType, &e.Description)
	if err != nil {
		return domain.Event{}, err
	}
	e.Timestamp, _ = time.Parse(timeLayout, timestamp)
	return e, nil
}
