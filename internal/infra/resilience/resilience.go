// Package resilience provides fault-tolerance patterns:
// retry with exponential backoff, circuit breaker, and bulkhead.
package resilience

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
)

// RetryPolicy controls the retry helper. An operation is attempted at most
// MaxRetries times; the wait before attempt n is Delay * 2^(n-2).
type RetryPolicy struct {
	MaxRetries int
	Delay      time.Duration
}

// Retry executes fn with exponential backoff, respecting context
// cancellation. It returns the number of retries performed (attempts beyond
// the first) together with the last error, nil once fn succeeds.
func Retry(ctx context.Context, p RetryPolicy, fn func() error) (int, error) {
	attempts := p.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt - 1, err
		}

		lastErr = fn()
		if lastErr == nil {
			return attempt - 1, nil
		}

		if attempt < attempts {
			wait := p.Delay << (attempt - 1)
			select {
			case <-ctx.Done():
				return attempt, ctx.Err()
			case <-time.After(wait):
			}
		}
	}
	return attempts - 1, lastErr
}

// NewCircuitBreaker creates a circuit breaker with sensible defaults for a
// storage backend.
func NewCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,                // half-open: allow 3 requests
		Interval:    30 * time.Second, // closed: reset counters every 30s
		Timeout:     10 * time.Second, // open -> half-open after 10s
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
	})
}

// Bulkhead limits how many imports run concurrently in one process.
type Bulkhead struct {
	sem chan struct{}
}

// NewBulkhead creates a bulkhead with the given max concurrency.
func NewBulkhead(maxConcurrency int) *Bulkhead {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return &Bulkhead{sem: make(chan struct{}, maxConcurrency)}
}

// Acquire blocks until a slot is available or context is cancelled.
func (b *Bulkhead) Acquire(ctx context.Context) error {
	select {
	case b.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot.
func (b *Bulkhead) Release() {
	<-b.sem
}
