package resilience

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Retryer retries an operation with jittered exponential backoff up to a
// bounded attempt count.
type Retryer struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxAttempts     uint64
}

func NewRetryer(initial, max time.Duration, attempts int) Retryer {
	if initial <= 0 {
		initial = 500 * time.Millisecond
	}
	if max <= 0 {
		max = 30 * time.Second
	}
	if attempts <= 0 {
		attempts = 10
	}
	return Retryer{
		InitialInterval: initial,
		MaxInterval:     max,
		MaxAttempts:     uint64(attempts),
	}
}

// Do runs op until it succeeds, attempts are exhausted, or ctx is
// cancelled. The last error is returned.
func (r Retryer) Do(ctx context.Context, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.InitialInterval
	bo.MaxInterval = r.MaxInterval
	bo.MaxElapsedTime = 0

	wrapped := func() error {
		if err := op(); err != nil {
			metricRetryAttempts.Add(1)
			return err
		}
		return nil
	}
	return backoff.Retry(wrapped, backoff.WithContext(backoff.WithMaxRetries(bo, r.MaxAttempts-1), ctx))
}
