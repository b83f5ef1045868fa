package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"mymedaga-payments/internal/domain/model"
	"mymedaga-payments/internal/domain/ports/adapter"
	"mymedaga-payments/internal/domain/ports/repository"
	"mymedaga-payments/internal/infra/metrics"
)

// claimLease bounds how long a crashed relay keeps rows hidden from others.
const claimLease = 2 * time.Minute

// Compile-time check
var _ NotificationUseCase = (*notificationUC)(nil)

type NotificationUseCase interface {
	// RelayPending publishes up to limit committed notifications and returns how many were delivered.
	RelayPending(ctx context.Context, limit int) (int, error)
}

type notificationUC struct {
	notifications repository.NotificationRepository
	publisher     adapter.NotificationPublisher
	tm            repository.TransactionManager
	maxAttempts   int
	log           *zerolog.Logger
}

func NewNotificationUseCase(
	notifications repository.NotificationRepository,
	publisher adapter.NotificationPublisher,
	tm repository.TransactionManager,
	maxAttempts int,
	logger *zerolog.Logger,
) *notificationUC {
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	l := logger.With().Str("component", "NotificationUC").Logger()
	return &notificationUC{notifications: notifications, publisher: publisher, tm: tm, maxAttempts: maxAttempts, log: &l}
}

// RelayPending drains the outbox. The claim is a short transaction that
// leases rows; each publish runs with no transaction open and its result is
// recorded right after. A relay that dies mid-batch leaves rows whose lease
// expires, so another relay picks them up.
func (n *notificationUC) RelayPending(ctx context.Context, limit int) (int, error) {
	var batch []*model.Notification
	err := n.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		batch, err = n.notifications.ClaimUnpublished(ctx, tx, limit, n.maxAttempts, claimLease)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("claim notifications: %w", err)
	}

	published := 0
	for _, item := range batch {
		perr := n.publisher.Publish(ctx, item)
		metrics.IncNotificationPublished(perr)
		if perr != nil {
			n.log.Warn().Err(perr).Int64("notification_id", item.ID).Int("attempts", item.Attempts+1).Msg("publish failed")
			if err := n.notifications.MarkFailed(ctx, nil, item.ID, perr.Error()); err != nil {
				return published, fmt.Errorf("mark notification %d failed: %w", item.ID, err)
			}
			continue
		}
		if err := n.notifications.MarkPublished(ctx, nil, item.ID); err != nil {
			return published, fmt.Errorf("mark notification %d published: %w", item.ID, err)
		}
		published++
	}
	return published, nil
}
