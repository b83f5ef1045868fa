package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"mymedaga-payments/internal/domain/model"
	"mymedaga-payments/internal/domain/ports/repository"
	"mymedaga-payments/internal/infra/metrics"
	"mymedaga-payments/internal/infra/worker"
)

// Poller checks one payment with its provider.
type Poller interface {
	Poll(ctx context.Context, paymentID string) (*model.Payment, error)
}

// PaymentReconciler periodically scans for stale open payments and re-checks
// them with their provider. This covers lost webhooks, dropped delayed
// verifications and crashes mid-settlement.
type PaymentReconciler struct {
	poller     Poller
	payments   repository.PaymentRepository
	pool       *worker.Pool
	interval   time.Duration // how often to scan
	staleAfter time.Duration // how old an open payment must be to retry
	batch      int
	log        *zerolog.Logger
}

func NewPaymentReconciler(poller Poller, payments repository.PaymentRepository, pool *worker.Pool, interval, staleAfter time.Duration, batch int, logger *zerolog.Logger) *PaymentReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	if batch <= 0 {
		batch = 100
	}
	l := logger.With().Str("component", "PaymentReconciler").Logger()
	return &PaymentReconciler{poller: poller, payments: payments, pool: pool, interval: interval, staleAfter: staleAfter, batch: batch, log: &l}
}

func (w *PaymentReconciler) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting payment reconciler")
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping payment reconciler")
			return ctx.Err()
		case <-t.C:
			w.Tick(ctx)
		}
	}
}

// Tick queues one provider check per stale payment and returns how many were queued.
func (w *PaymentReconciler) Tick(ctx context.Context) int {
	cutoff := time.Now().Add(-w.staleAfter)
	open, err := w.payments.ListOpenOlderThan(ctx, nil, cutoff, w.batch)
	metrics.IncJob("payment_reconciler", err)
	if err != nil {
		w.log.Error().Err(err).Msg("list open payments failed")
		return 0
	}
	queued := 0
	for _, p := range open {
		id := p.ID
		err := w.pool.Submit(func(ctx context.Context) error {
			_, err := w.poller.Poll(ctx, id)
			return err
		})
		if err != nil {
			w.log.Warn().Err(err).Str("payment_id", id).Msg("reconcile task not queued")
			continue
		}
		queued++
	}
	if queued > 0 {
		w.log.Info().Int("count", queued).Msg("stale payments queued for verification")
	}
	return queued
}
