package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryerEventualSuccess(t *testing.T) {
	r := NewRetryer(time.Millisecond, 5*time.Millisecond, 10)
	attempts := 0
	err := r.Do(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errBoom
		}
		return nil
	})
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestRetryerExhaustsAttempts(t *testing.T) {
	r := NewRetryer(time.Millisecond, 2*time.Millisecond, 4)
	attempts := 0
	err := r.Do(context.Background(), func() error {
		attempts++
		return errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("err = %v, want last failure", err)
	}
	if attempts != 4 {
		t.Fatalf("attempts = %d, want 4", attempts)
	}
}

func TestRetryerHonorsContext(t *testing.T) {
	r := NewRetryer(time.Hour, time.Hour, 10)
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := r.Do(ctx, func() error {
		attempts++
		return errBoom
	})
	if err == nil {
		t.Fatal("expected error after cancellation")
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1 before the hour-long backoff", attempts)
	}
}

func TestRetryerDefaults(t *testing.T) {
	r := NewRetryer(0, 0, 0)
	if r.InitialInterval <= 0 || r.MaxInterval <= 0 || r.MaxAttempts == 0 {
		t.Fatalf("defaults not applied: %+v", r)
	}
}
