package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"mymedaga-payments/internal/infra/metrics"
)

// Job is one periodic unit of work, e.g. refreshing code statistics gauges.
type Job func(ctx context.Context) error

// Scheduler periodically runs a Job with a bounded timeout per run.
type Scheduler struct {
	name     string
	interval time.Duration
	timeout  time.Duration
	job      Job
	log      *zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler constructs a scheduler that runs job every `interval`.
// If interval <= 0 it defaults to 1 minute.
func NewScheduler(name string, interval time.Duration, job Job, logger *zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	l := logger.With().Str("component", "Scheduler").Str("job", name).Logger()
	return &Scheduler{
		name:     name,
		interval: interval,
		timeout:  30 * time.Second,
		job:      job,
		log:      &l,
		done:     make(chan struct{}),
	}
}

// Start runs the job once, then begins the loop in a background goroutine.
// Calling Start multiple times has no effect.
func (s *Scheduler) Start(parentCtx context.Context) {
	if s.ctx != nil {
		return
	}
	ctx, cancel := context.WithCancel(parentCtx)
	s.ctx = ctx
	s.cancel = cancel

	go s.loop()
}

func (s *Scheduler) loop() {
	ticker := time.NewTicker(s.interval)
	defer func() {
		ticker.Stop()
		close(s.done)
	}()

	s.log.Info().Dur("interval", s.interval).Msg("scheduler started")
	s.runOnce()
	for {
		select {
		case <-s.ctx.Done():
			s.log.Info().Msg("scheduler stopping")
			return
		case <-ticker.C:
			s.runOnce()
		}
	}
}

func (s *Scheduler) runOnce() {
	runCtx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()
	err := s.job(runCtx)
	metrics.IncJob(s.name, err)
	if err != nil {
		s.log.Error().Err(err).Msg("scheduled job failed")
	}
}

// Stop cancels the scheduler and waits for the loop to finish. It is idempotent.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	// reset for potential restart
	s.ctx = nil
	s.cancel = nil
	s.done = make(chan struct{})
}
