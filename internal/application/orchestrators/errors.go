package orchestrators

// ValidationError reports input rejected before any external call.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// AuthError reports a failure from the identity provider. Error returns the
// provider's message verbatim so it can be shown to the user.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string { return e.Err.Error() }

// Unwrap returns the provider error.
func (e *AuthError) Unwrap() error { return e.Err }

// RepositoryError wraps a storage failure. Error returns the raw storage
// message; Op names the operation for logs.
type RepositoryError struct {
	Op  string
	Err error
}

func (e *RepositoryError) Error() string { return e.Err.Error() }

// Unwrap returns the storage error.
func (e *RepositoryError) Unwrap() error { return e.Err }
