package runnable

import (
	"context"
	"math/rand"
	"time"

	"github.com/runloom/core/callbacks"
)

// RetryPredicate decides whether an error is worth retrying.
type RetryPredicate func(err error) bool

// Retry wraps Bound and retries on error up to MaxAttempts times
// (including the first try) with optional exponential jitter between
// attempts, when Predicate accepts the error (spec.md §4.4 "Retry").
// A nil Predicate retries every error.
type Retry[I, O any] struct {
	Bound          Runnable[I, O]
	MaxAttempts    int
	Predicate      RetryPredicate
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func (r Retry[I, O]) shouldRetry(err error) bool {
	if r.Predicate == nil {
		return true
	}
	return r.Predicate(err)
}

// RetryState is handed to on_retry before every re-attempt.
type RetryState struct {
	Attempt int
	Err     error
}

func (r Retry[I, O]) Invoke(ctx context.Context, input I, cfg Config) (O, error) {
	var zero O
	result, err := CallWithConfig(ctx, cfg, "RunnableRetry", input, func(childCtx context.Context, childCfg Config, rm callbacks.ChainRunManager) (any, error) {
		attempts := r.MaxAttempts
		if attempts <= 0 {
			attempts = 1
		}
		var lastErr error
		backoff := r.InitialBackoff
		for i := 0; i < attempts; i++ {
			out, err := r.Bound.Invoke(childCtx, input, childCfg)
			if err == nil {
				return out, nil
			}
			lastErr = err
			if i == attempts-1 || !r.shouldRetry(err) {
				break
			}
			rm.OnRetry(RetryState{Attempt: i + 1, Err: err})
			if backoff > 0 {
				jittered := backoff + time.Duration(rand.Int63n(int64(backoff/2+1)))
				select {
				case <-childCtx.Done():
					return nil, childCtx.Err()
				case <-time.After(jittered):
				}
				if r.MaxBackoff > 0 && backoff*2 > r.MaxBackoff {
					backoff = r.MaxBackoff
				} else {
					backoff *= 2
				}
			}
		}
		return nil, lastErr
	})
	if err != nil {
		return zero, err
	}
	return result.(O), nil
}

func (r Retry[I, O]) Batch(ctx context.Context, inputs []I, cfg Config, returnExceptions bool) ([]Result[O], error) {
	return DefaultBatch[I, O](ctx, r, inputs, cfg, returnExceptions)
}

func (r Retry[I, O]) Stream(ctx context.Context, input I, cfg Config) (<-chan StreamItem[O], error) {
	return DefaultStream[I, O](ctx, r, input, cfg)
}
