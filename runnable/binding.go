package runnable

import "context"

// ConfigFactory derives additional config to merge in after Binding's
// baked-in config, run after the merge so listeners can inject
// callbacks (spec.md §4.4 "Binding").
type ConfigFactory func(cfg Config) Config

// Binding merges baked-in config into every call to Bound. It carries
// no kwargs; a concrete Runnable that needs baked-in arguments closes
// over them (e.g. a chat model bound with tool definitions).
type Binding[I, O any] struct {
	Bound           Runnable[I, O]
	Config          Config
	ConfigFactories []ConfigFactory
}

func (b Binding[I, O]) resolve(cfg Config) Config {
	merged := Merge(cfg, b.Config)
	for _, factory := range b.ConfigFactories {
		merged = factory(merged)
	}
	return merged
}

func (b Binding[I, O]) Invoke(ctx context.Context, input I, cfg Config) (O, error) {
	return b.Bound.Invoke(ctx, input, b.resolve(cfg))
}

func (b Binding[I, O]) Batch(ctx context.Context, inputs []I, cfg Config, returnExceptions bool) ([]Result[O], error) {
	return b.Bound.Batch(ctx, inputs, b.resolve(cfg), returnExceptions)
}

func (b Binding[I, O]) Stream(ctx context.Context, input I, cfg Config) (<-chan StreamItem[O], error) {
	return b.Bound.Stream(ctx, input, b.resolve(cfg))
}
