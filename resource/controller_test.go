package resource

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControllerAdmit(t *testing.T) {
	c := NewController(Config{MaxConcurrentQueries: 2})
	ctx := context.Background()

	r1, err := c.Admit(ctx)
	require.NoError(t, err)
	r2, err := c.Admit(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), c.InFlight())

	_, err = c.Admit(ctx)
	assert.ErrorIs(t, err, ErrOverloaded)
	assert.Equal(t, int64(1), c.Rejected())

	r1()
	r1()
	assert.Equal(t, int64(1), c.InFlight())

	r3, err := c.Admit(ctx)
	require.NoError(t, err)
	r2()
	r3()
	assert.Zero(t, c.InFlight())
}

func TestControllerQueueTimeout(t *testing.T) {
	c := NewController(Config{MaxConcurrentQueries: 1, QueueTimeout: time.Second})
	ctx := context.Background()

	release, err := c.Admit(ctx)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r, err := c.Admit(ctx)
		assert.NoError(t, err)
		if r != nil {
			r()
		}
	}()

	time.Sleep(20 * time.Millisecond)
	release()
	wg.Wait()

	short := NewController(Config{MaxConcurrentQueries: 1, QueueTimeout: 10 * time.Millisecond})
	hold, err := short.Admit(ctx)
	require.NoError(t, err)
	defer hold()
	_, err = short.Admit(ctx)
	assert.ErrorIs(t, err, ErrOverloaded)
}

func TestControllerAdmitCanceled(t *testing.T) {
	c := NewController(Config{MaxConcurrentQueries: 1, QueueTimeout: time.Minute})
	hold, err := c.Admit(context.Background())
	require.NoError(t, err)
	defer hold()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = c.Admit(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, c.Rejected())
}

func TestControllerRateLimit(t *testing.T) {
	c := NewController(Config{MaxConcurrentQueries: 10, RequestsPerSecond: 0.001, Burst: 2})
	ctx := context.Background()

	for range 2 {
		release, err := c.Admit(ctx)
		require.NoError(t, err)
		release()
	}
	_, err := c.Admit(ctx)
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestNilController(t *testing.T) {
	var c *Controller
	release, err := c.Admit(context.Background())
	require.NoError(t, err)
	release()
	assert.Zero(t, c.InFlight())
	assert.NoError(t, c.AcquireIO(context.Background(), 1<<30))
}

func TestControllerIO(t *testing.T) {
	c := NewController(Config{LoadBytesPerSec: 1000})

	start := time.Now()
	// The first 1000 bytes come from the burst, the next 100 take ~100ms.
	require.NoError(t, c.AcquireIO(context.Background(), 1100))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, c.AcquireIO(ctx, 5000))
}
