package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBreakerClosedPassesThrough(t *testing.T) {
	b := NewBreaker(BreakerConfig{})

	var calls int
	_, err := Exec(context.Background(), b, func(_ context.Context) (int, error) {
		calls++
		return 7, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if b.State() != BreakerClosed {
		t.Errorf("expected closed state, got %s", b.State())
	}
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := NewBreaker(BreakerConfig{
		FailureThreshold: 3,
		ResetTimeout:     1 * time.Minute,
	})

	for i := 0; i < 3; i++ {
		_, _ = Exec(context.Background(), b, func(_ context.Context) (struct{}, error) {
			return struct{}{}, errors.New("fail")
		})
	}

	if b.State() != BreakerOpen {
		t.Fatalf("expected open state after 3 failures, got %s", b.State())
	}

	_, err := Exec(context.Background(), b, func(_ context.Context) (struct{}, error) {
		t.Error("should not be called when circuit is open")
		return struct{}{}, nil
	})
	if !errors.Is(err, ErrBreakerOpen) {
		t.Errorf("expected ErrBreakerOpen, got %v", err)
	}
}

func TestBreakerSuccessResetsFailures(t *testing.T) {
	b := NewBreaker(BreakerConfig{
		FailureThreshold: 3,
		ResetTimeout:     1 * time.Minute,
	})

	for i := 0; i < 2; i++ {
		_, _ = Exec(context.Background(), b, func(_ context.Context) (struct{}, error) {
			return struct{}{}, errors.New("fail")
		})
	}
	_, _ = Exec(context.Background(), b, func(_ context.Context) (struct{}, error) {
		return struct{}{}, nil
	})

	// Two more failures must not trip the breaker after the reset.
	for i := 0; i < 2; i++ {
		_, _ = Exec(context.Background(), b, func(_ context.Context) (struct{}, error) {
			return struct{}{}, errors.New("fail")
		})
	}
	if b.State() != BreakerClosed {
		t.Errorf("expected closed state, got %s", b.State())
	}
}

func TestBreakerHalfOpenProbeCloses(t *testing.T) {
	now := time.Now()
	b := NewBreaker(BreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     100 * time.Millisecond,
	}).WithNow(func() time.Time { return now })

	for i := 0; i < 2; i++ {
		_, _ = Exec(context.Background(), b, func(_ context.Context) (struct{}, error) {
			return struct{}{}, errors.New("fail")
		})
	}
	if b.State() != BreakerOpen {
		t.Fatalf("expected open state, got %s", b.State())
	}

	now = now.Add(200 * time.Millisecond)
	if b.State() != BreakerHalfOpen {
		t.Fatalf("expected half-open state after timeout, got %s", b.State())
	}

	_, err := Exec(context.Background(), b, func(_ context.Context) (struct{}, error) {
		return struct{}{}, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.State() != BreakerClosed {
		t.Errorf("expected closed state after successful probe, got %s", b.State())
	}
}

func TestBreakerHalfOpenProbeFailsReopens(t *testing.T) {
	now := time.Now()
	b := NewBreaker(BreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     100 * time.Millisecond,
	}).WithNow(func() time.Time { return now })

	for i := 0; i < 2; i++ {
		_, _ = Exec(context.Background(), b, func(_ context.Context) (struct{}, error) {
			return struct{}{}, errors.New("fail")
		})
	}

	now = now.Add(200 * time.Millisecond)
	_, _ = Exec(context.Background(), b, func(_ context.Context) (struct{}, error) {
		return struct{}{}, errors.New("probe fails")
	})

	if b.State() != BreakerOpen {
		t.Fatalf("expected open state after failed probe, got %s", b.State())
	}

	// A fresh timeout window starts from the failed probe.
	_, err := Exec(context.Background(), b, func(_ context.Context) (struct{}, error) {
		t.Error("should not be called while re-opened")
		return struct{}{}, nil
	})
	if !errors.Is(err, ErrBreakerOpen) {
		t.Errorf("expected ErrBreakerOpen, got %v", err)
	}
}

func TestBreakerOnStateChange(t *testing.T) {
	var transitions []string
	b := NewBreaker(BreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     1 * time.Minute,
		OnStateChange: func(from, to BreakerState) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	_, _ = Exec(context.Background(), b, func(_ context.Context) (struct{}, error) {
		return struct{}{}, errors.New("fail")
	})

	if len(transitions) != 1 || transitions[0] != "closed->open" {
		t.Errorf("expected [closed->open], got %v", transitions)
	}
}
