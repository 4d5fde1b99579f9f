package deletion

import (
	"fmt"
	"time"
)

// DisplayDateLayout formats dates shown to the user.
const DisplayDateLayout = "2 Jan 2006"

// Messages shown next to the countdown.
const (
	MessagePreview = "Confirming will schedule your account for deletion in 10 days. You can cancel at any time before then."
	MessageToday   = "Your account deletion is scheduled for today."
	MessageLastDay = "Your account will be deleted in less than a day. You can still cancel."
)

// View is the displayable state derived from a request (or its absence) and the current time.
type View struct {
	HasPendingRequest   bool
	RequestedAt         time.Time
	DeletionDate        time.Time
	RequestedAtDisplay  string
	DeletionDateDisplay string
	DaysRemaining       int
	Message             string
	ShowConfirm         bool
	ShowCancel          bool
}

// DaysUntil returns the whole days left before deletionDate, rounded down and never negative.
// The same floor policy is used for the first render and for every countdown tick.
func DaysUntil(deletionDate, now time.Time) int {
	remaining := deletionDate.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int(remaining / (24 * time.Hour))
}

// CountdownMessage returns the message for a pending request that is not yet due.
func CountdownMessage(days int) string {
	switch {
	case days <= 0:
		return MessageLastDay
	case days == 1:
		return "Your account will be deleted in 1 day."
	default:
		return fmt.Sprintf("Your account will be deleted in %d days.", days)
	}
}

// Derive computes the view for req at now. A nil req yields the hypothetical
// preview shown before the user confirms; nothing is written.
// PRE: none
// POST: DaysRemaining >= 0; confirm and cancel are never both shown
func Derive(req *Request, now time.Time) View {
	if req == nil {
		deletionDate := now.Add(GracePeriod)
		return View{
			RequestedAt:         now,
			DeletionDate:        deletionDate,
			RequestedAtDisplay:  now.Format(DisplayDateLayout),
			DeletionDateDisplay: deletionDate.Format(DisplayDateLayout),
			DaysRemaining:       GracePeriodDays,
			Message:             MessagePreview,
			ShowConfirm:         true,
		}
	}

	v := Tick(req.DeletionDate, now)
	v.HasPendingRequest = true
	v.RequestedAt = req.RequestedAt
	v.RequestedAtDisplay = req.RequestedAt.Format(DisplayDateLayout)
	return v
}

// Tick re-derives the countdown part of a pending view from the deletion date alone.
// Used by the countdown ticker, which never refetches the request.
// INVARIANT: Cancel stays visible until the deletion date itself, even once the
// floored day count reads 0
func Tick(deletionDate, now time.Time) View {
	days := DaysUntil(deletionDate, now)
	due := (&Request{DeletionDate: deletionDate}).IsDue(now)
	msg := CountdownMessage(days)
	if due {
		msg = MessageToday
	}
	return View{
		HasPendingRequest:   true,
		DeletionDate:        deletionDate,
		DeletionDateDisplay: deletionDate.Format(DisplayDateLayout),
		DaysRemaining:       days,
		Message:             msg,
		ShowCancel:          !due,
	}
}
