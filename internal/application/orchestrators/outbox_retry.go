package orchestrators

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	emailAdapter "deletionportal/internal/adapters/email"
	domainOutbox "deletionportal/internal/domain/outbox"
	"deletionportal/internal/metrics"
)

// OutboxStore defines the store interface needed by the outbox orchestrators.
type OutboxStore interface {
	Save(ctx context.Context, e domainOutbox.Entry) error
	ListPending(ctx context.Context, now time.Time, limit int) ([]domainOutbox.Entry, error)
}

// OutboxRetryDeps provides the dependencies for retrying outbox entries.
type OutboxRetryDeps struct {
	Store  OutboxStore
	Sender emailAdapter.Sender
	Now    func() time.Time
}

// OutboxRetryConfig holds configuration for the retry scheduler.
type OutboxRetryConfig struct {
	Interval  time.Duration
	BaseDelay time.Duration
	MaxDelay  time.Duration
	BatchSize int
	Enabled   bool
}

// DefaultOutboxRetryConfig returns the production schedule. WithDefaults fills
// unset fields from it.
func DefaultOutboxRetryConfig() OutboxRetryConfig {
	return OutboxRetryConfig{
		Interval:  time.Minute,
		BaseDelay: 30 * time.Second,
		MaxDelay:  time.Hour,
		BatchSize: 50,
		Enabled:   true,
	}
}

// WithDefaults returns cfg with zero durations and batch size taken from
// DefaultOutboxRetryConfig. Enabled is left as set.
func (cfg OutboxRetryConfig) WithDefaults() OutboxRetryConfig {
	def := DefaultOutboxRetryConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	return cfg
}

// OutboxRetryResult summarises one retry pass.
type OutboxRetryResult struct {
	Processed int
	Succeeded int
	Failed    int
	Skipped   int
}

// ExecuteOutboxRetry delivers pending outbox entries whose backoff has elapsed.
// PRE: deps.Store and deps.Sender are set
// POST: Each due entry is attempted once and saved as done, retrying or failed
func ExecuteOutboxRetry(ctx context.Context, deps OutboxRetryDeps, cfg OutboxRetryConfig) (OutboxRetryResult, error) {
	var result OutboxRetryResult
	cfg = cfg.WithDefaults()

	now := time.Now
	if deps.Now != nil {
		now = deps.Now
	}

	entries, err := deps.Store.ListPending(ctx, now(), cfg.BatchSize)
	if err != nil {
		return result, &RepositoryError{Op: "list outbox", Err: err}
	}
	if len(entries) == 0 {
		return result, nil
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if entry.IsTerminal() || !entry.Due(now()) {
			result.Skipped++
			continue
		}
		if !entry.CanRetry() {
			// attempts used up without a terminal status; close it out
			entry.MarkFailed(domainOutbox.ErrAttemptsExhausted)
			result.Failed++
			metrics.OutboxDelivery("failed")
			slog.Error("outbox_retry_exhausted", "entry_id", entry.ID, "attempts", entry.Attempts)
			if err := deps.Store.Save(ctx, entry); err != nil {
				slog.Error("outbox_retry_save_failed", "entry_id", entry.ID, "error", err)
			}
			continue
		}
		result.Processed++

		entry.MarkAttempt(now())
		externalID, err := deliver(ctx, deps.Sender, entry)
		if err != nil {
			entry.MarkFailed(err)
			result.Failed++
			if entry.IsTerminal() {
				metrics.OutboxDelivery("failed")
				slog.Error("outbox_retry_exhausted", "entry_id", entry.ID, "attempts", entry.Attempts, "error", err)
			} else {
				entry.ScheduleRetry(cfg.BaseDelay, cfg.MaxDelay)
				metrics.OutboxDelivery("retry")
				slog.Warn("outbox_retry_failed", "entry_id", entry.ID, "attempt", entry.Attempts,
					"next_attempt_at", entry.NextAttemptAt, "error", err)
			}
		} else {
			entry.MarkSuccess(externalID)
			result.Succeeded++
			metrics.OutboxDelivery("sent")
			slog.Info("outbox_retry_succeeded", "entry_id", entry.ID, "attempt", entry.Attempts, "external_id", externalID)
		}

		if err := deps.Store.Save(ctx, entry); err != nil {
			slog.Error("outbox_retry_save_failed", "entry_id", entry.ID, "error", err)
		}
	}

	slog.Info("outbox_retry_complete",
		"processed", result.Processed, "succeeded", result.Succeeded,
		"failed", result.Failed, "skipped", result.Skipped)
	return result, nil
}

// deliver executes one entry and returns the provider's ID.
func deliver(ctx context.Context, sender emailAdapter.Sender, entry domainOutbox.Entry) (string, error) {
	switch entry.ActionType {
	case domainOutbox.ActionTypeEmail:
		if sender == nil {
			return "", fmt.Errorf("no email sender configured")
		}
		var req emailAdapter.SendRequest
		if err := json.Unmarshal([]byte(entry.Payload), &req); err != nil {
			return "", fmt.Errorf("unmarshal email payload: %w", err)
		}
		res, err := sender.Send(ctx, req)
		if err != nil {
			return "", err
		}
		return res.MessageID, nil
	default:
		return "", fmt.Errorf("unknown action type: %s", entry.ActionType)
	}
}

// StartOutboxRetryScheduler runs ExecuteOutboxRetry every cfg.Interval until ctx is done.
// PRE: deps are initialized
// POST: Goroutine started; the returned func stops it
func StartOutboxRetryScheduler(ctx context.Context, deps OutboxRetryDeps, cfg OutboxRetryConfig) func() {
	if !cfg.Enabled || cfg.Interval <= 0 {
		return func() {}
	}

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				slog.Info("outbox_retry_scheduler_stopped")
				return
			case <-ticker.C:
				if _, err := ExecuteOutboxRetry(ctx, deps, cfg); err != nil {
					slog.Error("outbox_retry_scheduler_error", "error", err)
				}
			}
		}
	}()
	return cancel
}
