package resource

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

var (
	// ErrOverloaded is returned when all query slots stay busy for longer
	// than the queue timeout.
	ErrOverloaded = errors.New("too many concurrent queries")
	// ErrRateLimited is returned when the request rate exceeds the limit.
	ErrRateLimited = errors.New("request rate limit exceeded")
)

// Config holds resource limits.
type Config struct {
	// MaxConcurrentQueries is the number of queries evaluated at once.
	// If 0, defaults to 1.
	MaxConcurrentQueries int64

	// QueueTimeout is how long a query waits for a free slot.
	// If 0, queries are rejected immediately when all slots are busy.
	QueueTimeout time.Duration

	// RequestsPerSecond limits the rate of admitted queries.
	// If 0, unlimited.
	RequestsPerSecond float64

	// Burst is the number of queries admitted at once above the rate.
	// If 0, defaults to MaxConcurrentQueries.
	Burst int

	// LoadBytesPerSec limits the read throughput of snapshot loading.
	// If 0, unlimited.
	LoadBytesPerSec int64
}

// Controller admits queries and throttles background snapshot loads.
// A nil Controller admits everything.
type Controller struct {
	cfg Config

	querySem *semaphore.Weighted
	inFlight atomic.Int64
	rejected atomic.Int64

	rateLimiter *rate.Limiter // nil if unlimited
	ioLimiter   *rate.Limiter // nil if unlimited
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxConcurrentQueries <= 0 {
		cfg.MaxConcurrentQueries = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = int(cfg.MaxConcurrentQueries)
	}

	c := &Controller{
		cfg:      cfg,
		querySem: semaphore.NewWeighted(cfg.MaxConcurrentQueries),
	}

	if cfg.RequestsPerSecond > 0 {
		c.rateLimiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
	}
	if cfg.LoadBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.LoadBytesPerSec), int(cfg.LoadBytesPerSec))
	}
	return c
}

// Admit reserves a query slot. The returned function releases it and must
// be called exactly once.
func (c *Controller) Admit(ctx context.Context) (func(), error) {
	if c == nil {
		return func() {}, nil
	}
	if c.rateLimiter != nil && !c.rateLimiter.Allow() {
		c.rejected.Add(1)
		return nil, ErrRateLimited
	}

	if !c.querySem.TryAcquire(1) {
		if c.cfg.QueueTimeout <= 0 {
			c.rejected.Add(1)
			return nil, ErrOverloaded
		}
		waitCtx, cancel := context.WithTimeout(ctx, c.cfg.QueueTimeout)
		defer cancel()
		if err := c.querySem.Acquire(waitCtx, 1); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.rejected.Add(1)
			return nil, ErrOverloaded
		}
	}

	c.inFlight.Add(1)
	var released atomic.Bool
	return func() {
		if released.CompareAndSwap(false, true) {
			c.inFlight.Add(-1)
			c.querySem.Release(1)
		}
	}, nil
}

// InFlight returns the number of admitted queries that are still running.
func (c *Controller) InFlight() int64 {
	if c == nil {
		return 0
	}
	return c.inFlight.Load()
}

// Rejected returns the number of queries turned away so far.
func (c *Controller) Rejected() int64 {
	if c == nil {
		return 0
	}
	return c.rejected.Load()
}

// AcquireIO waits until the load limit allows reading the given number of
// bytes. Requests above the burst are split.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil || c.ioLimiter == nil {
		return nil
	}
	burst := c.ioLimiter.Burst()
	for bytes > 0 {
		n := min(bytes, burst)
		if err := c.ioLimiter.WaitN(ctx, n); err != nil {
			return err
		}
		bytes -= n
	}
	return nil
}
