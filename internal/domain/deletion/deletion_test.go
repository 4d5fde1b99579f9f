package deletion

import (
	"testing"
	"time"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return ts
}

// TestNewRequest_GracePeriod tests that the deletion date is exactly ten days after creation.
func TestNewRequest_GracePeriod(t *testing.T) {
	now := mustTime(t, "2024-01-01T00:00:00Z")
	r := NewRequest("req-1", "user-1", "a@example.com", now)

	want := mustTime(t, "2024-01-11T00:00:00Z")
	if !r.DeletionDate.Equal(want) {
		t.Errorf("expected deletion date %v, got %v", want, r.DeletionDate)
	}
	if r.Status != StatusPending {
		t.Errorf("expected status pending, got %s", r.Status)
	}
	if err := r.Validate(); err != nil {
		t.Errorf("expected valid request, got %v", err)
	}
}

// TestRequest_Validate tests the validation rules.
func TestRequest_Validate(t *testing.T) {
	now := mustTime(t, "2024-01-01T00:00:00Z")
	base := NewRequest("req-1", "user-1", "a@example.com", now)

	tests := []struct {
		name    string
		mutate  func(r *Request)
		wantErr error
	}{
		{"missing id", func(r *Request) { r.ID = "" }, ErrEmptyRequestID},
		{"missing user", func(r *Request) { r.UserID = "" }, ErrEmptyUserID},
		{"missing email", func(r *Request) { r.Email = "" }, ErrEmptyEmail},
		{"wrong status", func(r *Request) { r.Status = "cancelled" }, ErrInvalidStatus},
		{"shifted deletion date", func(r *Request) { r.DeletionDate = r.DeletionDate.Add(time.Hour) }, ErrInvalidSchedule},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := base
			tt.mutate(&r)
			if err := r.Validate(); err != tt.wantErr {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

// TestDaysUntil tests floor rounding and clamping at zero.
func TestDaysUntil(t *testing.T) {
	deletionDate := mustTime(t, "2024-01-11T00:00:00Z")
	tests := []struct {
		now  string
		want int
	}{
		{"2024-01-01T00:00:00Z", 10},
		{"2024-01-01T00:00:01Z", 9},
		{"2024-01-09T00:00:00Z", 2},
		{"2024-01-10T00:00:01Z", 0},
		{"2024-01-11T00:00:00Z", 0},
		{"2024-02-01T00:00:00Z", 0},
	}
	for _, tt := range tests {
		if got := DaysUntil(deletionDate, mustTime(t, tt.now)); got != tt.want {
			t.Errorf("DaysUntil at %s: expected %d, got %d", tt.now, tt.want, got)
		}
	}
}

// TestDerive_PendingRequest covers a request two days before its deadline.
func TestDerive_PendingRequest(t *testing.T) {
	r := NewRequest("req-1", "user-1", "a@example.com", mustTime(t, "2024-01-01T00:00:00Z"))
	v := Derive(&r, mustTime(t, "2024-01-09T00:00:00Z"))

	if !v.HasPendingRequest {
		t.Error("expected pending request")
	}
	if v.DaysRemaining != 2 {
		t.Errorf("expected 2 days remaining, got %d", v.DaysRemaining)
	}
	if v.ShowConfirm || !v.ShowCancel {
		t.Errorf("expected cancel only, got confirm=%v cancel=%v", v.ShowConfirm, v.ShowCancel)
	}
	if v.RequestedAtDisplay != "1 Jan 2024" || v.DeletionDateDisplay != "11 Jan 2024" {
		t.Errorf("unexpected display dates %q / %q", v.RequestedAtDisplay, v.DeletionDateDisplay)
	}
	if v.Message != "Your account will be deleted in 2 days." {
		t.Errorf("unexpected message %q", v.Message)
	}
}

// TestDerive_NoRequest covers the hypothetical preview before confirmation.
func TestDerive_NoRequest(t *testing.T) {
	v := Derive(nil, mustTime(t, "2024-06-01T00:00:00Z"))

	if v.HasPendingRequest {
		t.Error("expected no pending request")
	}
	if !v.DeletionDate.Equal(mustTime(t, "2024-06-11T00:00:00Z")) {
		t.Errorf("expected hypothetical deletion date 2024-06-11, got %v", v.DeletionDate)
	}
	if v.DaysRemaining != GracePeriodDays {
		t.Errorf("expected %d days, got %d", GracePeriodDays, v.DaysRemaining)
	}
	if !v.ShowConfirm || v.ShowCancel {
		t.Errorf("expected confirm only, got confirm=%v cancel=%v", v.ShowConfirm, v.ShowCancel)
	}
}

// TestDerive_DueToday tests the terminal display once the deadline is reached.
func TestDerive_DueToday(t *testing.T) {
	r := NewRequest("req-1", "user-1", "a@example.com", mustTime(t, "2024-01-01T00:00:00Z"))
	for _, now := range []string{"2024-01-11T00:00:00Z", "2024-03-01T00:00:00Z"} {
		v := Derive(&r, mustTime(t, now))
		if v.DaysRemaining != 0 {
			t.Errorf("at %s: expected 0 days, got %d", now, v.DaysRemaining)
		}
		if v.Message != MessageToday {
			t.Errorf("at %s: expected today message, got %q", now, v.Message)
		}
		if v.ShowConfirm || v.ShowCancel {
			t.Errorf("at %s: expected both affordances hidden", now)
		}
	}
	if !r.IsDue(mustTime(t, "2024-01-11T00:00:00Z")) {
		t.Error("expected request to be due at its deletion date")
	}
}

// TestDerive_LastDayKeepsCancel tests that the final 24 hours still allow cancelling.
func TestDerive_LastDayKeepsCancel(t *testing.T) {
	r := NewRequest("req-1", "user-1", "a@example.com", mustTime(t, "2024-01-01T00:00:00Z"))
	for _, now := range []string{"2024-01-10T00:00:01Z", "2024-01-10T12:00:00Z", "2024-01-10T23:59:59Z"} {
		v := Derive(&r, mustTime(t, now))
		if v.DaysRemaining != 0 {
			t.Errorf("at %s: expected 0 whole days, got %d", now, v.DaysRemaining)
		}
		if !v.ShowCancel || v.ShowConfirm {
			t.Errorf("at %s: expected cancel only, got %+v", now, v)
		}
		if v.Message != MessageLastDay {
			t.Errorf("at %s: expected last-day message, got %q", now, v.Message)
		}
		if r.IsDue(mustTime(t, now)) {
			t.Errorf("at %s: request must not be due before its deletion date", now)
		}
	}
}

// TestDerive_FreshRequestMatchesPreview tests that confirming does not change the day count shown.
func TestDerive_FreshRequestMatchesPreview(t *testing.T) {
	now := mustTime(t, "2024-06-01T09:30:00Z")
	preview := Derive(nil, now)
	r := NewRequest("req-1", "user-1", "a@example.com", now)
	created := Derive(&r, now)

	if preview.DaysRemaining != created.DaysRemaining {
		t.Errorf("expected %d days after confirm, got %d", preview.DaysRemaining, created.DaysRemaining)
	}
	if !preview.DeletionDate.Equal(created.DeletionDate) {
		t.Errorf("expected same deletion date, got %v and %v", preview.DeletionDate, created.DeletionDate)
	}
}

// TestCountdownMessage tests singular and plural wording.
func TestCountdownMessage(t *testing.T) {
	if got := CountdownMessage(1); got != "Your account will be deleted in 1 day." {
		t.Errorf("unexpected singular message %q", got)
	}
	if got := CountdownMessage(0); got != MessageLastDay {
		t.Errorf("unexpected zero message %q", got)
	}
}
