package runloop

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitRunsInOrder(t *testing.T) {
	l := New(8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.Submit(context.Background(), "t", func(context.Context) error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
		// Give each submit a moment to enqueue so arrival order is fixed.
		time.Sleep(5 * time.Millisecond)
	}
	wg.Wait()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestSubmitPropagatesError(t *testing.T) {
	l := New(1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	want := errors.New("boom")
	err := l.Submit(context.Background(), "failing", func(context.Context) error { return want })
	assert.ErrorIs(t, err, want)
}

func TestSubmitAfterStop(t *testing.T) {
	l := New(1)
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	cancel()
	<-l.stopped

	err := l.Submit(context.Background(), "late", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrStopped)
}

func TestSubmitAfterStopNeverBlocks(t *testing.T) {
	l := New(4)
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	cancel()
	<-l.stopped

	// Submitting against a stopped loop must fail fast even with room in the
	// command buffer, not leave the submitter parked on an unread channel.
	for i := 0; i < 50; i++ {
		done := make(chan error, 1)
		go func() {
			done <- l.Submit(context.Background(), "late", func(context.Context) error { return nil })
		}()
		select {
		case err := <-done:
			require.ErrorIs(t, err, ErrStopped)
		case <-time.After(time.Second):
			t.Fatalf("submit %d blocked after stop", i)
		}
	}
}

func TestSubmitHonorsCallerContext(t *testing.T) {
	l := New(1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	release := make(chan struct{})
	go func() {
		_ = l.Submit(context.Background(), "slow", func(context.Context) error {
			<-release
			return nil
		})
	}()
	time.Sleep(10 * time.Millisecond)

	callerCtx, callerCancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer callerCancel()
	err := l.Submit(callerCtx, "waiting", func(context.Context) error { return nil })
	require.ErrorIs(t, err, context.DeadlineExceeded)
	close(release)
}
