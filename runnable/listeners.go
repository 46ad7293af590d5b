package runnable

import "context"

// Listeners attaches lifecycle callbacks around Bound's invocations
// without needing a full Handler implementation (spec.md §4.4
// "Listeners"): with_listeners is the sync OnStart/OnEnd/OnError form,
// with_alisteners the async-callable variant used here since Go has
// one calling convention for both.
type Listeners[I, O any] struct {
	Bound   Runnable[I, O]
	OnStart func(ctx context.Context, input I)
	OnEnd   func(ctx context.Context, output O)
	OnError func(ctx context.Context, err error)
}

func (l Listeners[I, O]) Invoke(ctx context.Context, input I, cfg Config) (O, error) {
	if l.OnStart != nil {
		l.OnStart(ctx, input)
	}
	out, err := l.Bound.Invoke(ctx, input, cfg)
	if err != nil {
		if l.OnError != nil {
			l.OnError(ctx, err)
		}
		return out, err
	}
	if l.OnEnd != nil {
		l.OnEnd(ctx, out)
	}
	return out, nil
}

func (l Listeners[I, O]) Batch(ctx context.Context, inputs []I, cfg Config, returnExceptions bool) ([]Result[O], error) {
	return DefaultBatch[I, O](ctx, l, inputs, cfg, returnExceptions)
}

func (l Listeners[I, O]) Stream(ctx context.Context, input I, cfg Config) (<-chan StreamItem[O], error) {
	return DefaultStream[I, O](ctx, l, input, cfg)
}
