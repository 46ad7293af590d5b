package runnable

import "context"

// Transformer is the optional stream-to-stream capability a Runnable
// can implement (spec.md §4.3 "transform"): it consumes an input
// stream and produces an output stream. Composites probe for it with a
// type assertion; runnables without it fall back to DefaultTransform.
type Transformer[I, O any] interface {
	Transform(ctx context.Context, in <-chan StreamItem[I], cfg Config) (<-chan StreamItem[O], error)
}

// DefaultTransform implements transform for non-streaming runnables:
// it accumulates the input stream down to its last element and
// delegates to Stream (spec.md §4.3 "for non-streaming runnables,
// accumulates the last input and delegates to stream").
func DefaultTransform[I, O any](ctx context.Context, r Runnable[I, O], in <-chan StreamItem[I], cfg Config) (<-chan StreamItem[O], error) {
	out := make(chan StreamItem[O])
	go func() {
		defer close(out)
		var last I
		seen := false
		for item := range in {
			if item.Err != nil {
				out <- StreamItem[O]{Err: item.Err}
				return
			}
			last = item.Value
			seen = true
		}
		if !seen {
			return
		}
		ch, err := r.Stream(ctx, last, cfg)
		if err != nil {
			out <- StreamItem[O]{Err: err}
			return
		}
		for item := range ch {
			out <- item
			if item.Err != nil {
				return
			}
		}
	}()
	return out, nil
}

// transformOf resolves r's transform: its own Transform when it
// implements Transformer, DefaultTransform otherwise.
func transformOf[I, O any](ctx context.Context, r Runnable[I, O], in <-chan StreamItem[I], cfg Config) (<-chan StreamItem[O], error) {
	if t, ok := r.(Transformer[I, O]); ok {
		return t.Transform(ctx, in, cfg)
	}
	return DefaultTransform[I, O](ctx, r, in, cfg)
}

// IndexedResult pairs a batch result with the index of the input that
// produced it, for completion-order consumers.
type IndexedResult[O any] struct {
	Index int
	Value O
	Err   error
}

// BatchAsCompleted runs inputs through r bounded by
// cfg.MaxConcurrency and yields (index, result) pairs in completion
// order rather than input order (spec.md §4.3 "as_completed yields
// results in completion order with original index").
func BatchAsCompleted[I, O any](ctx context.Context, r Runnable[I, O], inputs []I, cfg Config) <-chan IndexedResult[O] {
	out := make(chan IndexedResult[O], len(inputs))
	go func() {
		defer close(out)
		runLocal(len(inputs), cfg.MaxConcurrency, func(i int) {
			v, err := r.Invoke(ctx, inputs[i], cfg)
			out <- IndexedResult[O]{Index: i, Value: v, Err: err}
		})
	}()
	return out
}
