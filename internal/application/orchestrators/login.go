package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"deletionportal/internal/adapters/identity"
)

// Messages shown on the login form.
const (
	MsgMissingCredentials = "Please enter both email and password"
	MsgLoginUnavailable   = "An error occurred during login. Please try again."
)

// errLoginUnavailable replaces unexpected provider errors so internals are not shown to users.
var errLoginUnavailable = errors.New(MsgLoginUnavailable)

// IdentityForLogin defines the identity operations needed by Login and Logout.
type IdentityForLogin interface {
	SignIn(ctx context.Context, email, password string) (identity.Session, error)
	SignOut(ctx context.Context, token string) error
}

// LoginInput carries input for the login orchestrator.
type LoginInput struct {
	Email    string
	Password string
}

// LoginDeps holds dependencies for Login and Logout.
type LoginDeps struct {
	Identity IdentityForLogin
}

// ExecuteLogin validates the form and signs the user in.
// PRE: none
// POST: Returns the new session, a *ValidationError for missing fields, or an *AuthError
func ExecuteLogin(ctx context.Context, input LoginInput, deps LoginDeps) (identity.Session, error) {
	email := strings.TrimSpace(input.Email)
	if email == "" || input.Password == "" {
		return identity.Session{}, &ValidationError{Message: MsgMissingCredentials}
	}

	sess, err := deps.Identity.SignIn(ctx, email, input.Password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) || errors.Is(err, identity.ErrAccountLocked) {
			return identity.Session{}, &AuthError{Err: err}
		}
		slog.Error("login_error", "email", email, "error", err)
		return identity.Session{}, &AuthError{Err: errLoginUnavailable}
	}
	return sess, nil
}

// ExecuteLogout ends the session for token.
// POST: Session ended, or an *AuthError carrying the provider's message
func ExecuteLogout(ctx context.Context, token string, deps LoginDeps) error {
	if err := deps.Identity.SignOut(ctx, token); err != nil {
		return &AuthError{Err: err}
	}
	return nil
}
