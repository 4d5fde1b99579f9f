package portal

import (
	"strconv"

	"deletionportal/internal/adapters/identity"
	"deletionportal/internal/domain/deletion"
)

// ViewState is the top-level page the user sees.
type ViewState int

const (
	LoggedOut ViewState = iota
	Pending
	NoRequestYet
)

// String returns the state name used in logs.
func (s ViewState) String() string {
	switch s {
	case LoggedOut:
		return "logged_out"
	case Pending:
		return "pending"
	case NoRequestYet:
		return "no_request_yet"
	default:
		return "unknown"
	}
}

// ResolveView picks the page for a session and its request.
// A missing session always wins over a request.
func ResolveView(user *identity.Session, req *deletion.Request) ViewState {
	switch {
	case user == nil:
		return LoggedOut
	case req != nil:
		return Pending
	default:
		return NoRequestYet
	}
}

// Render applies state to p. For LoggedOut the login form is reset and every
// banner hidden; otherwise the deletion panel shows user's email and view.
// PRE: user is non-nil unless state is LoggedOut
func Render(p Presenter, state ViewState, user *identity.Session, view deletion.View) {
	if state == LoggedOut {
		p.SetVisible(ElemDeletion, false)
		p.SetVisible(ElemCancelPrompt, false)
		p.SetVisible(ElemLoading, false)
		p.SetVisible(ElemError, false)
		p.SetVisible(ElemSuccess, false)
		p.SetText(TextUserEmail, "")
		p.SetText(TextLoginEmail, "")
		p.SetText(TextLoginError, "")
		p.SetVisible(ElemLoginError, false)
		p.SetVisible(ElemLogin, true)
		return
	}

	p.SetVisible(ElemLogin, false)
	p.SetVisible(ElemLoginError, false)
	p.SetVisible(ElemError, false)
	p.SetText(TextUserEmail, user.Email)
	applyView(p, view)
	p.SetVisible(ElemDeletion, true)
}

// RenderLoginError shows the login form with msg in its error banner.
func RenderLoginError(p Presenter, email, msg string) {
	Render(p, LoggedOut, nil, deletion.View{})
	p.SetText(TextLoginEmail, email)
	p.SetText(TextLoginError, msg)
	p.SetVisible(ElemLoginError, true)
}

// applyView fills the deletion panel from v. Used for full renders and countdown ticks.
func applyView(p Presenter, v deletion.View) {
	p.SetText(TextRequestedAt, v.RequestedAtDisplay)
	p.SetText(TextDeletionDate, v.DeletionDateDisplay)
	p.SetText(TextDaysRemaining, strconv.Itoa(v.DaysRemaining))
	p.SetText(TextMessage, v.Message)
	p.SetVisible(ElemPending, v.HasPendingRequest)
	p.SetVisible(ElemConfirm, v.ShowConfirm)
	p.SetVisible(ElemCancel, v.ShowCancel)
}

// applyTick updates only the countdown fields; the requested-at date is left alone.
// The cancel control is only touched when controls is true.
func applyTick(p Presenter, v deletion.View, controls bool) {
	p.SetText(TextDeletionDate, v.DeletionDateDisplay)
	p.SetText(TextDaysRemaining, strconv.Itoa(v.DaysRemaining))
	p.SetText(TextMessage, v.Message)
	if controls {
		p.SetVisible(ElemCancel, v.ShowCancel)
	}
}

func showError(p Presenter, msg string) {
	p.SetText(TextError, msg)
	p.SetVisible(ElemError, true)
}
