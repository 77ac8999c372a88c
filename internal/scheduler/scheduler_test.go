package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRefresher struct {
	calls atomic.Int32
	err   error
	hook  func(n int32)
}

func (c *countingRefresher) RefreshSubscriptions(ctx context.Context) error {
	n := c.calls.Add(1)
	if c.hook != nil {
		c.hook(n)
	}
	return c.err
}

func TestScheduler_RunsImmediatelyAndOnTick(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	refresher := &countingRefresher{
		err: errors.New("offline"),
		hook: func(n int32) {
			if n == 3 {
				cancel()
			}
		},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sched := NewScheduler(refresher, 10*time.Millisecond, logger)

	done := make(chan error, 1)
	go func() { done <- sched.Start(ctx) }()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}

	assert.GreaterOrEqual(t, refresher.calls.Load(), int32(3))
}

func TestScheduler_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	refresher := &countingRefresher{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	err := NewScheduler(refresher, time.Hour, logger).Start(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), refresher.calls.Load())
}

func TestScheduler_RejectsNonPositiveInterval(t *testing.T) {
	refresher := &countingRefresher{}
	s := NewScheduler(refresher, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Zero(t, refresher.calls.Load())
}
