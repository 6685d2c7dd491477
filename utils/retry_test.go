package utils

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetrySucceedsAfterFailures(t *testing.T) {
	r := &RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, Logger: NewLogger()}

	calls := 0
	err := r.Do(context.Background(), "flaky", func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("fn called %d times, expected 3", calls)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	r := &RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond, Logger: NewLogger()}

	calls := 0
	err := r.Do(context.Background(), "down", func() error {
		calls++
		return errors.New("still down")
	})
	if err == nil {
		t.Fatal("expected an error after exhausting attempts")
	}
	if calls != 2 {
		t.Errorf("fn called %d times, expected 2", calls)
	}
}

func TestRetryAbortsOnCancel(t *testing.T) {
	r := &RetryConfig{MaxAttempts: 5, BaseDelay: time.Minute, Logger: NewLogger()}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := r.Do(ctx, "slow", func() error { return errors.New("fail") })
	if err == nil {
		t.Fatal("expected an error after cancellation")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error should wrap context.Canceled, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("cancellation did not interrupt the back-off wait")
	}
}
