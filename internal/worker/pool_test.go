package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolBasic(t *testing.T) {
	pool := NewPool(2)
	defer pool.Close()

	assert.Equal(t, 2, pool.Size())

	done := make(chan int, 1)
	require.NoError(t, pool.Submit(context.Background(), func() { done <- 42 }))

	select {
	case v := <-done:
		assert.Equal(t, 42, v)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for task")
	}
}

func TestPoolDefaultSize(t *testing.T) {
	pool := NewPool(0)
	defer pool.Close()
	assert.Positive(t, pool.Size())
}

// TestPoolConcurrency verifies concurrent submission from many goroutines.
func TestPoolConcurrency(t *testing.T) {
	const numRequests = 100

	pool := NewPool(4)
	defer pool.Close()

	var ran atomic.Int64
	var submitted sync.WaitGroup
	var finished sync.WaitGroup
	submitted.Add(numRequests)
	finished.Add(numRequests)

	for range numRequests {
		go func() {
			defer submitted.Done()
			err := pool.Submit(context.Background(), func() {
				defer finished.Done()
				time.Sleep(time.Millisecond)
				ran.Add(1)
			})
			if err != nil {
				finished.Done()
				t.Errorf("submit failed: %v", err)
			}
		}()
	}

	submitted.Wait()
	finished.Wait()
	assert.Equal(t, int64(numRequests), ran.Load())
}

func TestPoolContextCancellation(t *testing.T) {
	pool := NewPool(1)
	defer pool.Close()

	block := make(chan struct{})
	defer close(block)

	// Occupy the worker and fill the queue.
	for range 3 {
		require.NoError(t, pool.Submit(context.Background(), func() { <-block }))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := pool.Submit(ctx, func() {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// TestPoolShutdown verifies that Close drains queued work.
func TestPoolShutdown(t *testing.T) {
	pool := NewPool(2)

	var ran atomic.Int64
	for range 5 {
		require.NoError(t, pool.Submit(context.Background(), func() {
			time.Sleep(10 * time.Millisecond)
			ran.Add(1)
		}))
	}

	pool.Close()
	assert.Equal(t, int64(5), ran.Load())

	err := pool.Submit(context.Background(), func() {})
	assert.ErrorIs(t, err, ErrClosed)

	// Idempotent.
	pool.Close()
}

// TestPoolBackpressure verifies that Submit blocks while the queue is full.
func TestPoolBackpressure(t *testing.T) {
	pool := NewPool(1)
	defer pool.Close()

	release := make(chan struct{})
	for range 3 {
		require.NoError(t, pool.Submit(context.Background(), func() { <-release }))
	}

	accepted := make(chan error, 1)
	go func() {
		accepted <- pool.Submit(context.Background(), func() {})
	}()

	select {
	case <-accepted:
		t.Fatal("submit should block while the queue is full")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)

	select {
	case err := <-accepted:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("submit did not resume after the queue drained")
	}
}

func TestForEach(t *testing.T) {
	pool := NewPool(3)
	defer pool.Close()

	seen := make([]bool, 50)
	err := pool.ForEach(context.Background(), len(seen), func(i int) error {
		seen[i] = true
		return nil
	})
	require.NoError(t, err)
	for i, ok := range seen {
		assert.True(t, ok, "index %d not visited", i)
	}

	require.NoError(t, pool.ForEach(context.Background(), 0, func(int) error {
		t.Fatal("must not be called")
		return nil
	}))
}

func TestForEachLowestIndexError(t *testing.T) {
	pool := NewPool(4)
	defer pool.Close()

	errLow := errors.New("low")
	errHigh := errors.New("high")

	err := pool.ForEach(context.Background(), 10, func(i int) error {
		switch i {
		case 3:
			time.Sleep(5 * time.Millisecond)
			return errLow
		case 7:
			return errHigh
		}
		return nil
	})
	assert.ErrorIs(t, err, errLow)
}

func TestForEachCanceled(t *testing.T) {
	pool := NewPool(2)
	defer pool.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int64
	err := pool.ForEach(ctx, 10, func(int) error {
		calls.Add(1)
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls.Load())
}

func TestForEachClosedPool(t *testing.T) {
	pool := NewPool(1)
	pool.Close()

	err := pool.ForEach(context.Background(), 2, func(int) error { return nil })
	assert.ErrorIs(t, err, ErrClosed)
}
