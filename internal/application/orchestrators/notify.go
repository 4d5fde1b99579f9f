package orchestrators

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/yuin/goldmark"

	emailAdapter "deletionportal/internal/adapters/email"
	domain "deletionportal/internal/domain/deletion"
	domainOutbox "deletionportal/internal/domain/outbox"
	"deletionportal/internal/metrics"
)

const scheduledBody = `# Your account is scheduled for deletion

We received a request to delete your account on **%s**.

Your account and its data will be deleted on **%s**. Until then you can sign in
and cancel the request at any time.

If you did not ask for this, sign in and cancel it now.
`

const cancelledBody = `# Account deletion cancelled

The deletion scheduled for **%s** has been cancelled. Your account stays active.
`

// EmailNotifier sends deletion notices by email. Send failures never reach the caller:
// with an Outbox the notice is queued for ExecuteOutboxRetry, otherwise it is logged and dropped.
type EmailNotifier struct {
	Sender     emailAdapter.Sender
	Outbox     OutboxStore
	GenerateID func() string
	Now        func() time.Time
}

// DeletionScheduled tells the user when their account will be deleted.
func (n EmailNotifier) DeletionScheduled(ctx context.Context, req domain.Request) {
	body := fmt.Sprintf(scheduledBody,
		req.RequestedAt.Format(domain.DisplayDateLayout),
		req.DeletionDate.Format(domain.DisplayDateLayout))
	n.send(ctx, req, "Your account is scheduled for deletion", body)
}

// DeletionCancelled confirms that a scheduled deletion was withdrawn.
func (n EmailNotifier) DeletionCancelled(ctx context.Context, req domain.Request) {
	body := fmt.Sprintf(cancelledBody, req.DeletionDate.Format(domain.DisplayDateLayout))
	n.send(ctx, req, "Account deletion cancelled", body)
}

func (n EmailNotifier) send(ctx context.Context, req domain.Request, subject, markdown string) {
	if n.Sender == nil || req.Email == "" {
		return
	}
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &buf); err != nil {
		slog.Error("deletion_notice_render_failed", "request_id", req.ID, "error", err)
		return
	}
	msg := emailAdapter.SendRequest{
		To:      []string{req.Email},
		Subject: subject,
		HTML:    buf.String(),
	}
	if _, err := n.Sender.Send(ctx, msg); err != nil {
		slog.Error("deletion_notice_failed", "request_id", req.ID, "subject", subject, "error", err)
		n.enqueue(ctx, req, msg)
	}
}

// enqueue stores a failed notice for later delivery.
func (n EmailNotifier) enqueue(ctx context.Context, req domain.Request, msg emailAdapter.SendRequest) {
	if n.Outbox == nil || n.GenerateID == nil {
		return
	}
	now := time.Now
	if n.Now != nil {
		now = n.Now
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		slog.Error("deletion_notice_enqueue_failed", "request_id", req.ID, "error", err)
		return
	}
	entry := domainOutbox.NewEntry(n.GenerateID(), domainOutbox.ActionTypeEmail, string(payload), now())
	if err := entry.Validate(); err != nil {
		slog.Error("deletion_notice_enqueue_invalid", "request_id", req.ID, "error", err)
		return
	}
	if err := n.Outbox.Save(ctx, entry); err != nil {
		slog.Error("deletion_notice_enqueue_failed", "request_id", req.ID, "error", err)
		return
	}
	metrics.OutboxDelivery("enqueued")
	slog.Info("deletion_notice_enqueued", "request_id", req.ID, "entry_id", entry.ID)
}
