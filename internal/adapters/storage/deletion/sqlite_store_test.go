package deletion

import (
	"context"
	"errors"
	"testing"
	"time"

	"deletionportal/internal/adapters/storage"
	domain "deletionportal/internal/domain/deletion"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := storage.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := storage.Migrate(context.Background(), db, storage.DriverSQLite); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewSQLiteStore(storage.NewTimedDB(db, storage.DefaultSlowQuery))
}

var testNow = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// TestSQLiteStore_InsertAndFind tests the insert/read round trip.
func TestSQLiteStore_InsertAndFind(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	stored, err := s.Insert(ctx, domain.NewRequest("req-1", "user-1", "a@example.com", testNow))
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if !stored.DeletionDate.Equal(time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected deletion date %v", stored.DeletionDate)
	}

	found, err := s.FindByUserID(ctx, "user-1")
	if err != nil {
		t.Fatalf("FindByUserID failed: %v", err)
	}
	if found.ID != "req-1" || found.Email != "a@example.com" || found.Status != domain.StatusPending {
		t.Errorf("unexpected request %+v", found)
	}
	if err := found.Validate(); err != nil {
		t.Errorf("stored request should still be valid: %v", err)
	}
}

// TestSQLiteStore_FindMissing tests the NotFound outcome.
func TestSQLiteStore_FindMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.FindByUserID(context.Background(), "nobody")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// TestSQLiteStore_OnePerUser tests that a second request for the same user is rejected.
func TestSQLiteStore_OnePerUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Insert(ctx, domain.NewRequest("req-1", "user-1", "a@example.com", testNow)); err != nil {
		t.Fatalf("first Insert failed: %v", err)
	}
	_, err := s.Insert(ctx, domain.NewRequest("req-2", "user-1", "a@example.com", testNow.Add(time.Hour)))
	if !errors.Is(err, domain.ErrAlreadyPending) {
		t.Errorf("expected ErrAlreadyPending, got %v", err)
	}
	if _, err := s.Insert(ctx, domain.NewRequest("req-3", "user-2", "b@example.com", testNow)); err != nil {
		t.Errorf("other users should not be affected: %v", err)
	}
}

// TestSQLiteStore_Delete tests hard deletion and re-creation.
func TestSQLiteStore_Delete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Insert(ctx, domain.NewRequest("req-1", "user-1", "a@example.com", testNow)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := s.Delete(ctx, "req-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.FindByUserID(ctx, "user-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected request to be gone, got %v", err)
	}
	if err := s.Delete(ctx, "req-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}

	again, err := s.Insert(ctx, domain.NewRequest("req-2", "user-1", "a@example.com", testNow.Add(48*time.Hour)))
	if err != nil {
		t.Fatalf("re-Insert failed: %v", err)
	}
	if again.ID == "req-1" || !again.RequestedAt.Equal(testNow.Add(48*time.Hour)) {
		t.Errorf("expected a fresh request, got %+v", again)
	}
}
