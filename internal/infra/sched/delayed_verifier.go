package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"mymedaga-payments/internal/infra/worker"
)

// DelayedVerifier runs one provider check a fixed delay after initiation.
// It is best effort: a dropped check is picked up by the PaymentReconciler.
type DelayedVerifier struct {
	pool   *worker.Pool
	poller Poller
	delay  time.Duration
	log    *zerolog.Logger
}

func NewDelayedVerifier(pool *worker.Pool, poller Poller, delay time.Duration, logger *zerolog.Logger) *DelayedVerifier {
	if delay <= 0 {
		delay = 10 * time.Second
	}
	l := logger.With().Str("component", "DelayedVerifier").Logger()
	return &DelayedVerifier{pool: pool, poller: poller, delay: delay, log: &l}
}

func (v *DelayedVerifier) Schedule(paymentID string) {
	err := v.pool.SubmitAfter(v.delay, func(ctx context.Context) error {
		p, err := v.poller.Poll(ctx, paymentID)
		if err != nil {
			return err
		}
		v.log.Debug().Str("payment_id", paymentID).Str("status", string(p.Status)).Msg("delayed verification done")
		return nil
	})
	if err != nil {
		v.log.Warn().Err(err).Str("payment_id", paymentID).Msg("delayed verification not scheduled")
	}
}
