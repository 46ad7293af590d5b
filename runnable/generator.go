package runnable

import "context"

// Generator wraps a stream-to-stream function. Its Invoke collects
// every chunk the function emits and folds them together via Add, the
// chunk-addition operation the concrete O type supplies (e.g.
// streaming.Add for schema.AIMessageChunk) — spec.md §4.4 "Generator".
type Generator[I, O any] struct {
	Name string
	Fn   func(ctx context.Context, in <-chan I, cfg Config) (<-chan O, error)
	Add  func(a, b O) O
}

func (g Generator[I, O]) runStream(ctx context.Context, input I, cfg Config) (<-chan O, error) {
	in := make(chan I, 1)
	in <- input
	close(in)
	return g.Fn(ctx, in, cfg)
}

func (g Generator[I, O]) Invoke(ctx context.Context, input I, cfg Config) (O, error) {
	var acc O
	started := false
	stream, err := g.runStream(ctx, input, cfg)
	if err != nil {
		return acc, err
	}
	for chunk := range stream {
		if !started {
			acc = chunk
			started = true
			continue
		}
		acc = g.Add(acc, chunk)
	}
	return acc, nil
}

func (g Generator[I, O]) Batch(ctx context.Context, inputs []I, cfg Config, returnExceptions bool) ([]Result[O], error) {
	return DefaultBatch[I, O](ctx, g, inputs, cfg, returnExceptions)
}

// Transform drives Fn directly over the incoming stream, the
// capability Sequence probes for so a generator stage consumes its
// upstream incrementally (spec.md §4.3, §4.4 "Generator").
func (g Generator[I, O]) Transform(ctx context.Context, in <-chan StreamItem[I], cfg Config) (<-chan StreamItem[O], error) {
	values := make(chan I)
	go func() {
		defer close(values)
		for item := range in {
			if item.Err != nil {
				return
			}
			select {
			case values <- item.Value:
			case <-ctx.Done():
				return
			}
		}
	}()
	stream, err := g.Fn(ctx, values, cfg)
	if err != nil {
		return nil, err
	}
	out := make(chan StreamItem[O])
	go func() {
		defer close(out)
		for chunk := range stream {
			out <- StreamItem[O]{Value: chunk}
		}
	}()
	return out, nil
}

func (g Generator[I, O]) Stream(ctx context.Context, input I, cfg Config) (<-chan StreamItem[O], error) {
	stream, err := g.runStream(ctx, input, cfg)
	if err != nil {
		return nil, err
	}
	out := make(chan StreamItem[O])
	go func() {
		defer close(out)
		for chunk := range stream {
			out <- StreamItem[O]{Value: chunk}
		}
	}()
	return out, nil
}
