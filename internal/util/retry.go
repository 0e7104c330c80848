package util

import (
	"context"
	"errors"
	"math"
	"time"
)

// BackoffParams controls RetryWithBackoff.
//
// Delay before attempt n (n >= 1) is Base * Factor^(n-1). Retryable decides
// whether an error is worth another attempt; nil means every error is.
type BackoffParams struct {
	MaxTries  int
	Base      time.Duration
	Factor    float64
	Retryable func(error) bool
}

func (p BackoffParams) delay(attempt int) time.Duration {
	if p.Base <= 0 {
		return 0
	}
	factor := p.Factor
	if factor < 1 {
		factor = 1
	}
	return time.Duration(float64(p.Base) * math.Pow(factor, float64(attempt-1)))
}

// RetryWithBackoff calls fn until it succeeds, returns a non-retryable error,
// the context ends, or MaxTries attempts have been made.
func RetryWithBackoff[T any](ctx context.Context, params BackoffParams, fn func(context.Context) (T, error)) (T, error) {
	maxTries := params.MaxTries
	if maxTries <= 0 {
		maxTries = 1
	}
	var lastErr error
	var zero T
	for i := 0; i < maxTries; i++ {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if i > 0 {
			if err := sleep(ctx, params.delay(i)); err != nil {
				return zero, err
			}
		}
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			if ctx.Err() != nil {
				return zero, err
			}
		}
		lastErr = err
		if params.Retryable != nil && !params.Retryable(err) {
			return zero, err
		}
	}
	return zero, lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
