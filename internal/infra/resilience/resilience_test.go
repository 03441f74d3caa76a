package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ledgerline/importd/internal/infra/resilience"
)

func TestRetry_FirstAttemptSucceeds(t *testing.T) {
	p := resilience.RetryPolicy{MaxRetries: 3, Delay: 10 * time.Millisecond}

	calls := 0
	retries, err := resilience.Retry(context.Background(), p, func() error {
		calls++
		return nil
	})

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if retries != 0 {
		t.Errorf("expected 0 retries, got %d", retries)
	}
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	p := resilience.RetryPolicy{MaxRetries: 3, Delay: 10 * time.Millisecond}

	calls := 0
	retries, err := resilience.Retry(context.Background(), p, func() error {
		calls++
		if calls < 3 {
			return errors.New("temporary error")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if retries != 2 {
		t.Errorf("expected 2 retries, got %d", retries)
	}
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	p := resilience.RetryPolicy{MaxRetries: 3, Delay: 5 * time.Millisecond}

	calls := 0
	want := errors.New("persistent error")
	_, err := resilience.Retry(context.Background(), p, func() error {
		calls++
		return want
	})

	if !errors.Is(err, want) {
		t.Fatalf("expected last error back, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected exactly MaxRetries calls, got %d", calls)
	}
}

func TestRetry_RespectsContext(t *testing.T) {
	p := resilience.RetryPolicy{MaxRetries: 5, Delay: time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := resilience.Retry(ctx, p, func() error {
		return errors.New("error")
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}

func TestBulkhead_AcquireRelease(t *testing.T) {
	bh := resilience.NewBulkhead(2)

	if err := bh.Acquire(context.Background()); err != nil {
		t.Fatalf("expected acquire, got %v", err)
	}
	if err := bh.Acquire(context.Background()); err != nil {
		t.Fatalf("expected acquire, got %v", err)
	}

	// Third acquire should block — test with timeout context
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := bh.Acquire(ctx); err == nil {
		t.Fatal("expected timeout on third acquire")
	}

	bh.Release()

	if err := bh.Acquire(context.Background()); err != nil {
		t.Fatalf("expected acquire after release, got %v", err)
	}
}
