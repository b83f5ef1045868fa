//go:build !integration

package scheduler

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestScheduler_RunsImmediatelyAndOnTick(t *testing.T) {
	logger := zerolog.New(io.Discard)
	var runs int32
	s := NewScheduler("test_job", 10*time.Millisecond, func(ctx context.Context) error {
		atomic.AddInt32(&runs, 1)
		return errors.New("ignored")
	}, &logger)

	s.Start(context.Background())
	s.Start(context.Background()) // no-op
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&runs) >= 3 }, time.Second, 5*time.Millisecond)
	s.Stop()
	s.Stop()

	after := atomic.LoadInt32(&runs)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, atomic.LoadInt32(&runs), "no runs after Stop")
}
