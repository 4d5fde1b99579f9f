package portal

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"deletionportal/internal/adapters/identity"
	"deletionportal/internal/application/countdown"
	"deletionportal/internal/application/orchestrators"
	"deletionportal/internal/domain/deletion"
)

// Controller errors.
var (
	ErrOperationInFlight = errors.New("another request is still in progress")
	ErrStaleCancelIntent = errors.New("this cancellation is no longer valid, please try again")
)

// MsgDeletionScheduled is shown after a successful confirm.
const MsgDeletionScheduled = "Your account is now scheduled for deletion."

// MsgDeletionCancelled is shown after a successful cancel.
const MsgDeletionCancelled = "Your account deletion has been cancelled."

// SessionSource resolves session tokens.
type SessionSource interface {
	CurrentSession(token string) (identity.Session, bool)
}

// Deps holds the collaborators shared by every Controller.
type Deps struct {
	Sessions     SessionSource
	Identity     orchestrators.IdentityForLogin
	Store        orchestrators.DeletionStore
	Notifier     orchestrators.DeletionNotifier
	GenerateID   func() string
	Now          func() time.Time
	TickInterval time.Duration
}

// Controller is the session context for one browser session. It owns the
// signed-in user, their current request and the countdown ticker, and
// renders every change to its Presenter.
type Controller struct {
	deps      Deps
	presenter Presenter
	ticker    *countdown.Ticker

	// busy is read by the ticker goroutine without mu.
	busy atomic.Bool

	mu           sync.Mutex
	user         *identity.Session
	request      *deletion.Request
	cancelIntent string
	confirming   bool
	cancelling   bool
	gen          uint64
}

// NewController creates a controller rendering to p. Call Init or HandleSignedIn before use.
func NewController(deps Deps, p Presenter) *Controller {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Controller{
		deps:      deps,
		presenter: p,
		ticker:    countdown.New(deps.TickInterval, deps.Now),
	}
}

// Init resolves the session for token and either loads the user's request or shows the login form.
func (c *Controller) Init(ctx context.Context, token string) {
	if sess, ok := c.deps.Sessions.CurrentSession(token); ok {
		c.HandleSignedIn(ctx, sess)
		return
	}
	c.HandleSignedOut()
}

// HandleSignedIn binds sess to the controller and loads its request.
func (c *Controller) HandleSignedIn(ctx context.Context, sess identity.Session) {
	c.mu.Lock()
	c.gen++
	c.user = &sess
	c.request = nil
	c.cancelIntent = ""
	c.mu.Unlock()

	_ = c.load(ctx)
}

// HandleSignedOut resets the session context.
// POST: The ticker is stopped and the request cleared before the login form is rendered
func (c *Controller) HandleSignedOut() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ticker.Stop()
	c.request = nil
	c.user = nil
	c.cancelIntent = ""
	c.gen++
	Render(c.presenter, LoggedOut, nil, deletion.View{})
}

// Refresh refetches the request, for example after a failed load.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	signedIn := c.user != nil
	c.mu.Unlock()
	if !signedIn {
		return &orchestrators.AuthError{Err: deletion.ErrNotAuthenticated}
	}
	return c.load(ctx)
}

// load fetches the current request and renders the result. A fetch failure
// renders the no-request view with the error banner; Refresh retries.
func (c *Controller) load(ctx context.Context) error {
	c.mu.Lock()
	if c.user == nil {
		c.mu.Unlock()
		return &orchestrators.AuthError{Err: deletion.ErrNotAuthenticated}
	}
	userID := c.user.UserID
	gen := c.gen
	c.presenter.SetVisible(ElemLoading, true)
	c.mu.Unlock()

	req, err := orchestrators.ExecuteLoadDeletion(ctx, userID, orchestrators.LoadDeletionDeps{Store: c.deps.Store})

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		// Signed out or re-signed in while fetching.
		return nil
	}
	c.presenter.SetVisible(ElemLoading, false)
	if err != nil {
		slog.Warn("portal_event", "event", "load_failed", "user_id", userID, "error", err)
		c.setRequestLocked(nil)
		showError(c.presenter, err.Error())
		return err
	}
	c.setRequestLocked(req)
	return nil
}

// Confirm schedules the account for deletion.
// PRE: signed in, no request pending
// POST: On success the pending view is shown and the countdown started
func (c *Controller) Confirm(ctx context.Context) error {
	c.mu.Lock()
	if c.user == nil {
		c.mu.Unlock()
		return &orchestrators.AuthError{Err: deletion.ErrNotAuthenticated}
	}
	if c.confirming || c.cancelling {
		c.mu.Unlock()
		return ErrOperationInFlight
	}
	if c.request != nil {
		showError(c.presenter, deletion.ErrAlreadyPending.Error())
		c.mu.Unlock()
		return deletion.ErrAlreadyPending
	}
	user := *c.user
	gen := c.gen
	c.confirming = true
	c.beginOperationLocked()
	c.mu.Unlock()

	req, err := orchestrators.ExecuteRequestDeletion(ctx,
		orchestrators.RequestDeletionInput{UserID: user.UserID, Email: user.Email},
		orchestrators.RequestDeletionDeps{
			Store:      c.deps.Store,
			Notifier:   c.deps.Notifier,
			GenerateID: c.deps.GenerateID,
			Now:        c.deps.Now,
		})

	// Another session scheduled the deletion first; pick up its request.
	var existing *deletion.Request
	if errors.Is(err, deletion.ErrAlreadyPending) {
		existing, _ = orchestrators.ExecuteLoadDeletion(ctx, user.UserID, orchestrators.LoadDeletionDeps{Store: c.deps.Store})
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.confirming = false
	if c.gen != gen {
		c.busy.Store(false)
		return err
	}
	if err != nil {
		if existing != nil {
			c.setRequestLocked(existing)
		}
		c.endOperationLocked()
		showError(c.presenter, err.Error())
		return err
	}
	c.setRequestLocked(&req)
	c.endOperationLocked()
	c.showSuccessLocked(MsgDeletionScheduled)
	return nil
}

// RequestCancel records the intent to cancel and shows the confirmation prompt.
// Returns the intent id that ConfirmCancel must be called with.
func (c *Controller) RequestCancel() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil {
		return "", &orchestrators.AuthError{Err: deletion.ErrNotAuthenticated}
	}
	if c.confirming || c.cancelling {
		return "", ErrOperationInFlight
	}
	if c.request == nil {
		return "", deletion.ErrNoActiveRequest
	}
	c.cancelIntent = c.deps.GenerateID()
	c.presenter.SetText(TextCancelIntent, c.cancelIntent)
	c.presenter.SetVisible(ElemCancelPrompt, true)
	return c.cancelIntent, nil
}

// DismissCancel drops a recorded cancel intent.
func (c *Controller) DismissCancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelIntent = ""
	c.presenter.SetVisible(ElemCancelPrompt, false)
	c.presenter.SetText(TextCancelIntent, "")
}

// ConfirmCancel cancels the pending request if intentID matches the recorded intent.
// POST: On success the no-request view is shown and the countdown stopped;
// on failure the current request is kept so the user can retry
func (c *Controller) ConfirmCancel(ctx context.Context, intentID string) error {
	c.mu.Lock()
	if c.user == nil {
		c.mu.Unlock()
		return &orchestrators.AuthError{Err: deletion.ErrNotAuthenticated}
	}
	if c.confirming || c.cancelling {
		c.mu.Unlock()
		return ErrOperationInFlight
	}
	if c.request == nil {
		c.mu.Unlock()
		return deletion.ErrNoActiveRequest
	}
	if c.cancelIntent == "" || intentID != c.cancelIntent {
		c.mu.Unlock()
		return ErrStaleCancelIntent
	}
	req := *c.request
	gen := c.gen
	c.cancelIntent = ""
	c.cancelling = true
	c.presenter.SetVisible(ElemCancelPrompt, false)
	c.presenter.SetText(TextCancelIntent, "")
	c.beginOperationLocked()
	c.mu.Unlock()

	err := orchestrators.ExecuteCancelDeletion(ctx, req,
		orchestrators.CancelDeletionDeps{Store: c.deps.Store, Notifier: c.deps.Notifier})

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelling = false
	if c.gen != gen {
		c.busy.Store(false)
		return err
	}
	if err != nil {
		c.endOperationLocked()
		showError(c.presenter, err.Error())
		return err
	}
	c.setRequestLocked(nil)
	c.endOperationLocked()
	c.showSuccessLocked(MsgDeletionCancelled)
	return nil
}

// Logout signs the user out. The identity provider's SignedOut event resets the controller.
func (c *Controller) Logout(ctx context.Context) error {
	c.mu.Lock()
	if c.user == nil {
		c.mu.Unlock()
		return nil
	}
	token := c.user.Token
	c.mu.Unlock()

	if err := orchestrators.ExecuteLogout(ctx, token, orchestrators.LoginDeps{Identity: c.deps.Identity}); err != nil {
		c.mu.Lock()
		showError(c.presenter, err.Error())
		c.mu.Unlock()
		return err
	}
	return nil
}

// Close stops the countdown. Used when the controller is discarded.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticker.Stop()
}

// User returns a copy of the signed-in session, if any.
func (c *Controller) User() (identity.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil {
		return identity.Session{}, false
	}
	return *c.user, true
}

// Request returns a copy of the current request, or nil.
func (c *Controller) Request() *deletion.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.request == nil {
		return nil
	}
	r := *c.request
	return &r
}

// State returns the current top-level view.
func (c *Controller) State() ViewState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ResolveView(c.user, c.request)
}

// setRequestLocked stores req, renders the matching view and starts or stops the countdown.
func (c *Controller) setRequestLocked(req *deletion.Request) {
	c.request = req
	state := ResolveView(c.user, req)
	now := c.deps.Now()
	Render(c.presenter, state, c.user, deletion.Derive(req, now))
	c.presenter.SetVisible(ElemSuccess, false)
	c.presenter.SetVisible(ElemCancelPrompt, c.cancelIntent != "")

	if state == Pending {
		c.ticker.Start(req.DeletionDate, c.renderTick)
		return
	}
	c.ticker.Stop()
}

func (c *Controller) renderTick(v deletion.View) {
	applyTick(c.presenter, v, !c.busy.Load())
}

// beginOperationLocked shows the loading indicator and disables the controls.
func (c *Controller) beginOperationLocked() {
	c.busy.Store(true)
	c.presenter.SetVisible(ElemError, false)
	c.presenter.SetVisible(ElemSuccess, false)
	c.presenter.SetVisible(ElemConfirm, false)
	c.presenter.SetVisible(ElemCancel, false)
	c.presenter.SetVisible(ElemLoading, true)
}

// endOperationLocked hides the loading indicator and restores the controls for the current view.
func (c *Controller) endOperationLocked() {
	c.busy.Store(false)
	c.presenter.SetVisible(ElemLoading, false)
	v := deletion.Derive(c.request, c.deps.Now())
	c.presenter.SetVisible(ElemConfirm, v.ShowConfirm)
	c.presenter.SetVisible(ElemCancel, v.ShowCancel)
}

func (c *Controller) showSuccessLocked(msg string) {
	c.presenter.SetText(TextSuccess, msg)
	c.presenter.SetVisible(ElemSuccess, true)
}
