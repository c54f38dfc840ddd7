package resilience

import (
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func newTestBreaker(threshold int, cooldown time.Duration) (*Breaker, *time.Time) {
	b := NewBreaker("test", threshold, cooldown)
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return clock }
	return b, &clock
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)
	for i := 0; i < 2; i++ {
		if err := b.Do(func() error { return errBoom }); !errors.Is(err, errBoom) {
			t.Fatalf("attempt %d = %v", i, err)
		}
		if b.State() != StateClosed {
			t.Fatalf("opened early at attempt %d", i)
		}
	}
	if err := b.Do(func() error { return errBoom }); !errors.Is(err, errBoom) {
		t.Fatalf("third failure = %v", err)
	}
	if b.State() != StateOpen {
		t.Fatalf("state = %q, want open", b.State())
	}

	// Open circuit fails fast without calling the operation.
	called := false
	err := b.Do(func() error { called = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("fast fail = %v", err)
	}
	if called {
		t.Fatal("operation invoked while open")
	}
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	b, clock := newTestBreaker(1, time.Minute)
	if err := b.Do(func() error { return errBoom }); !errors.Is(err, errBoom) {
		t.Fatalf("open it = %v", err)
	}
	if b.State() != StateOpen {
		t.Fatalf("state = %q", b.State())
	}

	// Cooldown elapses: one probe goes through; success closes the circuit.
	*clock = clock.Add(2 * time.Minute)
	if err := b.Do(func() error { return nil }); err != nil {
		t.Fatalf("probe = %v", err)
	}
	if b.State() != StateClosed {
		t.Fatalf("state after good probe = %q", b.State())
	}
}

func TestBreakerProbeFailureReopens(t *testing.T) {
	b, clock := newTestBreaker(1, time.Minute)
	_ = b.Do(func() error { return errBoom })
	*clock = clock.Add(2 * time.Minute)

	if err := b.Do(func() error { return errBoom }); !errors.Is(err, errBoom) {
		t.Fatalf("probe = %v", err)
	}
	if b.State() != StateOpen {
		t.Fatalf("state after failed probe = %q", b.State())
	}
	// Re-opened with a fresh cooldown: still failing fast.
	if err := b.Do(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("post-reopen call = %v", err)
	}
}

func TestBreakerSuccessResetsFailureRun(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)
	_ = b.Do(func() error { return errBoom })
	_ = b.Do(func() error { return errBoom })
	if err := b.Do(func() error { return nil }); err != nil {
		t.Fatalf("success = %v", err)
	}
	// The run restarts; two more failures must not open it.
	_ = b.Do(func() error { return errBoom })
	_ = b.Do(func() error { return errBoom })
	if b.State() != StateClosed {
		t.Fatal("non-consecutive failures opened the circuit")
	}
}
