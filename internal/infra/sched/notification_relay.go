package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"mymedaga-payments/internal/infra/metrics"
	"mymedaga-payments/internal/usecase"
)

// NotificationRelay drains the notification outbox on a ticker.
type NotificationRelay struct {
	interval time.Duration
	batch    int
	notifUC  usecase.NotificationUseCase
	log      *zerolog.Logger
}

func NewNotificationRelay(interval time.Duration, batch int, notifUC usecase.NotificationUseCase, logger *zerolog.Logger) *NotificationRelay {
	compLog := logger.With().Str("component", "NotificationRelay").Logger()
	return &NotificationRelay{
		interval: interval,
		batch:    batch,
		notifUC:  notifUC,
		log:      &compLog,
	}
}

func (w *NotificationRelay) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting notification relay")
	// Run once on startup, then on every tick
	w.relay(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping notification relay")
			return ctx.Err()
		case <-ticker.C:
			w.relay(ctx)
		}
	}
}

func (w *NotificationRelay) relay(ctx context.Context) {
	sent, err := w.notifUC.RelayPending(ctx, w.batch)
	metrics.IncJob("notification_relay", err)
	if err != nil {
		w.log.Error().Err(err).Msg("notification relay failed")
	}
	if sent > 0 {
		w.log.Debug().Int("count", sent).Msg("notifications published")
	}
}
