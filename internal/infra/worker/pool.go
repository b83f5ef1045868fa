package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"mymedaga-payments/internal/infra/metrics"
)

var (
	ErrNilTask   = errors.New("nil task")
	ErrQueueFull = errors.New("worker queue full")
	ErrStopped   = errors.New("worker pool stopped")
)

type Task func(ctx context.Context) error

// Pool runs submitted tasks on a fixed number of goroutines with a bounded queue.
type Pool struct {
	name string
	log  *zerolog.Logger

	wg     sync.WaitGroup
	timers sync.WaitGroup
	jobs   chan Task
	quit   chan struct{}
	once   sync.Once
	n      int

	// mu orders timers.Add against Stop's close of quit.
	mu      sync.Mutex
	stopped bool
}

func NewPool(name string, workers int, logger *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	l := logger.With().Str("component", "WorkerPool").Str("pool", name).Logger()
	return &Pool{name: name, log: &l, jobs: make(chan Task, workers*4), quit: make(chan struct{}), n: workers}
}

func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-p.quit:
					return
				case task := <-p.jobs:
					p.run(ctx, id, task)
				}
			}
		}(i)
	}
}

func (p *Pool) run(ctx context.Context, id int, task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Interface("panic", r).Int("worker", id).Msg("task panicked")
			metrics.IncJob(p.name, errors.New("panic"))
		}
	}()
	err := task(ctx)
	metrics.IncJob(p.name, err)
	if err != nil {
		p.log.Warn().Err(err).Int("worker", id).Msg("task error")
	}
}

// Stop prevents new submissions and waits for running tasks. Delayed tasks that
// have not fired yet are dropped.
func (p *Pool) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.once.Do(func() { close(p.quit) })
	p.mu.Unlock()
	p.wg.Wait()
	p.timers.Wait()
}

func (p *Pool) Submit(task Task) error {
	if task == nil {
		return ErrNilTask
	}
	select {
	case <-p.quit:
		return ErrStopped
	default:
	}
	select {
	case p.jobs <- task:
		return nil
	default:
		// drop when saturated; periodic reconciliation picks up what is lost here
		return ErrQueueFull
	}
}

// SubmitAfter enqueues task once delay has elapsed. It never blocks the caller.
func (p *Pool) SubmitAfter(delay time.Duration, task Task) error {
	if task == nil {
		return ErrNilTask
	}
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return ErrStopped
	}
	p.timers.Add(1)
	p.mu.Unlock()
	go func() {
		defer p.timers.Done()
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-p.quit:
			return
		case <-t.C:
			if err := p.Submit(task); err != nil {
				p.log.Warn().Err(err).Msg("delayed task dropped")
			}
		}
	}()
	return nil
}
