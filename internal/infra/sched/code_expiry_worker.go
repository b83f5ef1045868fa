package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"mymedaga-payments/internal/infra/metrics"
)

// CodeCleaner expires verification codes past their expiry date.
type CodeCleaner interface {
	CleanExpired(ctx context.Context) (int, error)
}

// CodeExpiryWorker periodically expires stale verification codes.
type CodeExpiryWorker struct {
	interval time.Duration
	codes    CodeCleaner
	log      *zerolog.Logger
}

func NewCodeExpiryWorker(interval time.Duration, codes CodeCleaner, logger *zerolog.Logger) *CodeExpiryWorker {
	exprLog := logger.With().Str("component", "CodeExpiryWorker").Logger()
	return &CodeExpiryWorker{
		interval: interval,
		codes:    codes,
		log:      &exprLog,
	}
}

func (w *CodeExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting code expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping code expiry worker")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.codes.CleanExpired(ctx)
			metrics.IncJob("code_expiry", err)
			if err != nil {
				w.log.Error().Err(err).Msg("code expiry failed")
			}
			if n > 0 {
				w.log.Info().Int("count", n).Msg("verification codes expired")
			}
		}
	}
}
