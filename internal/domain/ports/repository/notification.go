package repository

import (
	"context"
	"time"

	"mymedaga-payments/internal/domain/model"
)

// -----------------------------
// Notifications (in-app + outbox)
// -----------------------------

type NotificationRepository interface {
	// Enqueue writes the notification inside the caller's transaction.
	Enqueue(ctx context.Context, tx Tx, n *model.Notification) error
	// ClaimUnpublished leases up to limit unpublished rows with fewer than
	// maxAttempts attempts. Leased rows are invisible to other claims until
	// the lease runs out or the row is marked.
	ClaimUnpublished(ctx context.Context, tx Tx, limit, maxAttempts int, lease time.Duration) ([]*model.Notification, error)
	// MarkPublished and MarkFailed bump attempts and release the lease.
	MarkPublished(ctx context.Context, tx Tx, id int64) error
	MarkFailed(ctx context.Context, tx Tx, id int64, lastErr string) error
}
