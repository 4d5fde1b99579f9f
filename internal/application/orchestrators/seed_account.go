package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"deletionportal/internal/domain/account"
)

// AccountStoreForSeed defines the store interface needed by SeedAccount.
type AccountStoreForSeed interface {
	GetByEmail(ctx context.Context, email string) (account.Account, error)
	Save(ctx context.Context, a account.Account) error
}

// SeedAccountInput carries the account to create.
type SeedAccountInput struct {
	Email    string
	Password string
}

// SeedAccountDeps holds dependencies for SeedAccount.
type SeedAccountDeps struct {
	AccountStore AccountStoreForSeed
	GenerateID   func() string
	Now          func() time.Time
}

// ExecuteSeedAccount creates the account if no account with that email exists.
// PRE: Database is migrated
// POST: An account with input.Email exists; an existing account is left untouched
func ExecuteSeedAccount(ctx context.Context, input SeedAccountInput, deps SeedAccountDeps) error {
	_, err := deps.AccountStore.GetByEmail(ctx, input.Email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, account.ErrNotFound) {
		return err
	}

	acct := account.Account{
		ID:        deps.GenerateID(),
		Email:     account.NormalizeEmail(input.Email),
		CreatedAt: deps.Now(),
	}
	if err := acct.Validate(); err != nil {
		return err
	}
	if err := acct.SetPassword(input.Password); err != nil {
		return err
	}
	if err := deps.AccountStore.Save(ctx, acct); err != nil {
		return err
	}

	slog.Info("auth_event", "event", "account_seeded", "email", acct.Email)
	return nil
}
