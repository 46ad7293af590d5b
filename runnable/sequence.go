package runnable

import (
	"context"

	"github.com/runloom/core/callbacks"
)

// Sequence pipes A's output into B's input (spec.md §4.4 "Sequence").
// Invoke runs the two steps sequentially under child run managers
// tagged "seq:step:1" / "seq:step:2". Stream connects A's stream to
// B's stream through a channel so B starts consuming before
// A finishes producing, without materializing A's full output first.
type Sequence[I, M, O any] struct {
	Name string
	A    Runnable[I, M]
	B    Runnable[M, O]
}

// Pipe builds a Sequence from two runnables, the Go equivalent of the
// `A | B` composition operator (spec.md §4.4).
func Pipe[I, M, O any](a Runnable[I, M], b Runnable[M, O]) Sequence[I, M, O] {
	return Sequence[I, M, O]{A: a, B: b}
}

func (s Sequence[I, M, O]) Invoke(ctx context.Context, input I, cfg Config) (O, error) {
	var zero O
	result, err := CallWithConfig(ctx, cfg, nameOr(s.Name, "RunnableSequence"), input, func(childCtx context.Context, childCfg Config, rm callbacks.ChainRunManager) (any, error) {
		step1Cfg := childCfg
		step1Cfg.manager = rm.GetChild("seq:step:1")
		mid, err := s.A.Invoke(childCtx, input, step1Cfg)
		if err != nil {
			return nil, err
		}
		step2Cfg := childCfg
		step2Cfg.manager = rm.GetChild("seq:step:2")
		return s.B.Invoke(childCtx, mid, step2Cfg)
	})
	if err != nil {
		return zero, err
	}
	return result.(O), nil
}

func (s Sequence[I, M, O]) Batch(ctx context.Context, inputs []I, cfg Config, returnExceptions bool) ([]Result[O], error) {
	return DefaultBatch[I, O](ctx, s, inputs, cfg, returnExceptions)
}

// Stream connects A.Stream to B's transform through an in-memory
// channel, so incremental output from A feeds B without materializing
// the full intermediate (spec.md §4.4). If A errors, the channel is
// closed with the error in-band and B's transform stops being driven.
func (s Sequence[I, M, O]) Stream(ctx context.Context, input I, cfg Config) (<-chan StreamItem[O], error) {
	midCh, err := s.A.Stream(ctx, input, cfg)
	if err != nil {
		return nil, err
	}
	return transformOf[M, O](ctx, s.B, midCh, cfg)
}

// Transform chains A's transform into B's transform (spec.md §4.3).
func (s Sequence[I, M, O]) Transform(ctx context.Context, in <-chan StreamItem[I], cfg Config) (<-chan StreamItem[O], error) {
	midCh, err := transformOf[I, M](ctx, s.A, in, cfg)
	if err != nil {
		return nil, err
	}
	return transformOf[M, O](ctx, s.B, midCh, cfg)
}
