package runnable

import (
	"context"
	"sync"

	"github.com/runloom/core/callbacks"
)

// Branch is one named leg of a Parallel, type-erased to any/any so
// branches of differing concrete types can share a map (spec.md §4.4
// "Parallel").
type Branch[I any] struct {
	Invoke func(ctx context.Context, input I, cfg Config) (any, error)
}

// FromRunnable adapts a concrete Runnable[I, O] into a Branch[I] for
// use inside a Parallel map.
func FromRunnable[I, O any](r Runnable[I, O]) Branch[I] {
	return Branch[I]{Invoke: func(ctx context.Context, input I, cfg Config) (any, error) {
		return r.Invoke(ctx, input, cfg)
	}}
}

// Parallel runs every named branch concurrently against the same
// input, each under a child run manager tagged "map:key:<name>"
// (spec.md §4.4). On the first branch error, the other branches still
// run to completion but the collective result is that first error;
// partial results are discarded.
type Parallel[I any] struct {
	Name     string
	Branches map[string]Branch[I]
}

func (p Parallel[I]) Invoke(ctx context.Context, input I, cfg Config) (map[string]any, error) {
	result, err := CallWithConfig(ctx, cfg, nameOr(p.Name, "RunnableParallel"), input, func(childCtx context.Context, childCfg Config, rm callbacks.ChainRunManager) (any, error) {
		type branchResult struct {
			key   string
			value any
			err   error
		}
		resultsCh := make(chan branchResult, len(p.Branches))
		var wg sync.WaitGroup
		wg.Add(len(p.Branches))
		for key, branch := range p.Branches {
			key, branch := key, branch
			go func() {
				defer wg.Done()
				branchCfg := childCfg
				branchCfg.manager = rm.GetChild("map:key:" + key)
				v, err := branch.Invoke(childCtx, input, branchCfg)
				resultsCh <- branchResult{key: key, value: v, err: err}
			}()
		}
		go func() {
			wg.Wait()
			close(resultsCh)
		}()

		out := make(map[string]any, len(p.Branches))
		var firstErr error
		for r := range resultsCh {
			if r.err != nil {
				if firstErr == nil {
					firstErr = r.err
				}
				continue
			}
			out[r.key] = r.value
		}
		if firstErr != nil {
			return nil, firstErr
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(map[string]any), nil
}

func (p Parallel[I]) Batch(ctx context.Context, inputs []I, cfg Config, returnExceptions bool) ([]Result[map[string]any], error) {
	return DefaultBatch[I, map[string]any](ctx, p, inputs, cfg, returnExceptions)
}

func (p Parallel[I]) Stream(ctx context.Context, input I, cfg Config) (<-chan StreamItem[map[string]any], error) {
	return DefaultStream[I, map[string]any](ctx, p, input, cfg)
}
