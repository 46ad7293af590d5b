package runnable

import "context"

// Passthrough returns its input unchanged, the identity Runnable used
// as the default branch of a Parallel or as a placeholder leg while
// composing a pipeline.
type Passthrough[T any] struct{}

// Pick selects a subset of keys from a map-shaped output; keys absent
// from the input are omitted from the result.
func Pick(keys ...string) Func[map[string]any, map[string]any] {
	return Func[map[string]any, map[string]any]{
		Name: "RunnablePick",
		Fn: func(_ context.Context, input map[string]any, _ Config) (map[string]any, error) {
			out := make(map[string]any, len(keys))
			for _, k := range keys {
				if v, ok := input[k]; ok {
					out[k] = v
				}
			}
			return out, nil
		},
	}
}

// Assign runs the named branches against a map-shaped input and merges
// their results into a copy of it; a branch result overwrites an input
// key of the same name.
func Assign(branches map[string]Branch[map[string]any]) Func[map[string]any, map[string]any] {
	p := Parallel[map[string]any]{Name: "RunnableAssign", Branches: branches}
	return Func[map[string]any, map[string]any]{
		Name: "RunnableAssign",
		Fn: func(ctx context.Context, input map[string]any, cfg Config) (map[string]any, error) {
			computed, err := p.Invoke(ctx, input, cfg)
			if err != nil {
				return nil, err
			}
			out := make(map[string]any, len(input)+len(computed))
			for k, v := range input {
				out[k] = v
			}
			for k, v := range computed {
				out[k] = v
			}
			return out, nil
		},
	}
}

// Map lifts r to operate element-wise over a slice input, the `map`
// wrapper over Each.
func Map[I, O any](r Runnable[I, O]) Each[I, O] {
	return Each[I, O]{Bound: r}
}

// WithConfig bakes cfg into every call to r.
func WithConfig[I, O any](r Runnable[I, O], cfg Config) Binding[I, O] {
	return Binding[I, O]{Bound: r, Config: cfg}
}

func (Passthrough[T]) Invoke(_ context.Context, input T, _ Config) (T, error) {
	return input, nil
}

func (p Passthrough[T]) Batch(ctx context.Context, inputs []T, cfg Config, returnExceptions bool) ([]Result[T], error) {
	return DefaultBatch[T, T](ctx, p, inputs, cfg, returnExceptions)
}

func (p Passthrough[T]) Stream(ctx context.Context, input T, cfg Config) (<-chan StreamItem[T], error) {
	return DefaultStream[T, T](ctx, p, input, cfg)
}
