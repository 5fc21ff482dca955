package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestBreakerStateTransitions(t *testing.T) {
	logger := zaptest.NewLogger(t)
	config := Config{
		MaxRequests:      5,
		Interval:         200 * time.Millisecond,
		Timeout:          100 * time.Millisecond,
		FailureThreshold: 3,
		SuccessThreshold: 2,
	}

	cb := New("test", config, logger)
	ctx := context.Background()

	if cb.State() != StateClosed {
		t.Fatalf("expected initial state closed, got %s", cb.State())
	}

	for i := 0; i < 3; i++ {
		if err := cb.Execute(ctx, func() error { return nil }); err != nil {
			t.Fatalf("expected success, got %v", err)
		}
	}
	if cb.State() != StateClosed {
		t.Fatalf("expected state to remain closed, got %s", cb.State())
	}

	for i := 0; i < 3; i++ {
		if err := cb.Execute(ctx, func() error { return errors.New("boom") }); err == nil {
			t.Fatal("expected error, got nil")
		}
	}
	if cb.State() != StateOpen {
		t.Fatalf("expected open after failures, got %s", cb.State())
	}

	if err := cb.Execute(ctx, func() error { return nil }); err != ErrOpen {
		t.Fatalf("expected ErrOpen while open, got %v", err)
	}

	// Timeout elapses; half-open admits probes and closes on success streak.
	time.Sleep(150 * time.Millisecond)
	for i := 0; i < 2; i++ {
		if err := cb.Execute(ctx, func() error { return nil }); err != nil {
			t.Fatalf("expected half-open probe success, got %v", err)
		}
	}
	if cb.State() != StateClosed {
		t.Fatalf("expected closed after successful probes, got %s", cb.State())
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	logger := zaptest.NewLogger(t)
	config := Config{
		MaxRequests:      2,
		Timeout:          50 * time.Millisecond,
		FailureThreshold: 1,
		SuccessThreshold: 2,
	}
	cb := New("test-reopen", config, logger)
	ctx := context.Background()

	_ = cb.Execute(ctx, func() error { return errors.New("boom") })
	if cb.State() != StateOpen {
		t.Fatalf("expected open, got %s", cb.State())
	}

	time.Sleep(80 * time.Millisecond)
	_ = cb.Execute(ctx, func() error { return errors.New("still failing") })
	if cb.State() != StateOpen {
		t.Fatalf("expected reopen on half-open failure, got %s", cb.State())
	}
}
