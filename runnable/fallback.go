package runnable

import "context"

// Fallback tries Primary; on error, tries each of Alternatives in
// order. The first success wins; if every candidate fails, the last
// error surfaces (spec.md §4.4 "Fallbacks").
type Fallback[I, O any] struct {
	Primary      Runnable[I, O]
	Alternatives []Runnable[I, O]
}

func (f Fallback[I, O]) candidates() []Runnable[I, O] {
	return append([]Runnable[I, O]{f.Primary}, f.Alternatives...)
}

func (f Fallback[I, O]) Invoke(ctx context.Context, input I, cfg Config) (O, error) {
	var lastErr error
	var zero O
	for _, r := range f.candidates() {
		out, err := r.Invoke(ctx, input, cfg)
		if err == nil {
			return out, nil
		}
		lastErr = err
	}
	return zero, lastErr
}

func (f Fallback[I, O]) Batch(ctx context.Context, inputs []I, cfg Config, returnExceptions bool) ([]Result[O], error) {
	return DefaultBatch[I, O](ctx, f, inputs, cfg, returnExceptions)
}

func (f Fallback[I, O]) Stream(ctx context.Context, input I, cfg Config) (<-chan StreamItem[O], error) {
	var lastErr error
	for _, r := range f.candidates() {
		ch, err := r.Stream(ctx, input, cfg)
		if err != nil {
			lastErr = err
			continue
		}
		return ch, nil
	}
	return nil, lastErr
}
