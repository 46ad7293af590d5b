package runnable

import (
	"context"

	"github.com/runloom/core/callbacks"
)

// Runnable is the uniform execution contract every pipeline stage in
// this module implements (spec.md §4.3). I and O are the stage's
// input/output types; composites adapt concrete Runnables to
// Runnable[any, any] (see Any) to compose heterogeneously.
type Runnable[I, O any] interface {
	Invoke(ctx context.Context, input I, cfg Config) (O, error)
	Batch(ctx context.Context, inputs []I, cfg Config, returnExceptions bool) ([]Result[O], error)
	Stream(ctx context.Context, input I, cfg Config) (<-chan StreamItem[O], error)
}

// Result is one element of a Batch call: either a value or, when
// returnExceptions is true, a captured per-input error (spec.md §4.3).
type Result[O any] struct {
	Value O
	Err   error
}

// StreamItem is one element of a Stream channel: either an output
// chunk or a terminal error.
type StreamItem[O any] struct {
	Value O
	Err   error
}

// Func adapts a plain invoke function into a Runnable with default
// Batch/Stream behavior: Batch runs Invoke across inputs bounded by
// Config.MaxConcurrency: Stream emits the single Invoke result then
// closes (spec.md §4.3 "Default: emit the single invoke result").
type Func[I, O any] struct {
	Name string
	Fn   func(ctx context.Context, input I, cfg Config) (O, error)
}

func (f Func[I, O]) Invoke(ctx context.Context, input I, cfg Config) (O, error) {
	result, err := CallWithConfig(ctx, cfg, nameOr(f.Name, "RunnableLambda"), input, func(childCtx context.Context, childCfg Config, _ callbacks.ChainRunManager) (any, error) {
		return f.Fn(childCtx, input, childCfg)
	})
	if err != nil {
		var zero O
		return zero, err
	}
	return result.(O), nil
}

func (f Func[I, O]) Batch(ctx context.Context, inputs []I, cfg Config, returnExceptions bool) ([]Result[O], error) {
	return DefaultBatch[I, O](ctx, f, inputs, cfg, returnExceptions)
}

func (f Func[I, O]) Stream(ctx context.Context, input I, cfg Config) (<-chan StreamItem[O], error) {
	return DefaultStream[I, O](ctx, f, input, cfg)
}

func nameOr(name, fallback string) string {
	if name != "" {
		return name
	}
	return fallback
}

// DefaultBatch implements the default batch behavior any Runnable can
// delegate to: parallel Invoke bounded by Config.MaxConcurrency. If
// returnExceptions is false, the first error found aborts and becomes
// the sole returned error (spec.md §4.3).
func DefaultBatch[I, O any](ctx context.Context, r Runnable[I, O], inputs []I, cfg Config, returnExceptions bool) ([]Result[O], error) {
	results := make([]Result[O], len(inputs))
	runLocal(len(inputs), cfg.MaxConcurrency, func(i int) {
		v, err := r.Invoke(ctx, inputs[i], cfg)
		results[i] = Result[O]{Value: v, Err: err}
	})
	if !returnExceptions {
		for _, res := range results {
			if res.Err != nil {
				return nil, res.Err
			}
		}
	}
	return results, nil
}

// DefaultStream implements the default stream behavior: a single
// Invoke call whose result is emitted as the stream's only item
// (spec.md §4.3).
func DefaultStream[I, O any](ctx context.Context, r Runnable[I, O], input I, cfg Config) (<-chan StreamItem[O], error) {
	ch := make(chan StreamItem[O], 1)
	go func() {
		defer close(ch)
		v, err := r.Invoke(ctx, input, cfg)
		ch <- StreamItem[O]{Value: v, Err: err}
	}()
	return ch, nil
}

// Collect drains a stream channel into a slice, stopping at the first
// error.
func Collect[O any](ch <-chan StreamItem[O]) ([]O, error) {
	var out []O
	for item := range ch {
		if item.Err != nil {
			return out, item.Err
		}
		out = append(out, item.Value)
	}
	return out, nil
}
