package runnable

import "context"

// Each treats a []I input as a batch dispatched to the bound Runnable
// under one shared config (spec.md §4.4 "Each").
type Each[I, O any] struct {
	Bound Runnable[I, O]
}

func (e Each[I, O]) Invoke(ctx context.Context, inputs []I, cfg Config) ([]O, error) {
	results, err := e.Bound.Batch(ctx, inputs, cfg, false)
	if err != nil {
		return nil, err
	}
	out := make([]O, len(results))
	for i, r := range results {
		out[i] = r.Value
	}
	return out, nil
}

func (e Each[I, O]) Batch(ctx context.Context, inputLists [][]I, cfg Config, returnExceptions bool) ([]Result[[]O], error) {
	return DefaultBatch[[]I, []O](ctx, e, inputLists, cfg, returnExceptions)
}

func (e Each[I, O]) Stream(ctx context.Context, inputs []I, cfg Config) (<-chan StreamItem[[]O], error) {
	return DefaultStream[[]I, []O](ctx, e, inputs, cfg)
}
