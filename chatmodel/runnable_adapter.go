package chatmodel

import (
	"context"

	"github.com/runloom/core/callbacks"
	"github.com/runloom/core/runnable"
	"github.com/runloom/core/schema"
)

// ChatRunnable adapts a *Model to runnable.Runnable[[]schema.Message,
// schema.AIMessage] (spec.md §4.3), the shape every composite
// (Sequence, Parallel, Retry, Fallback, ...) expects. Stream emits
// successive AIMessage snapshots (each chunk folded via ToMessage())
// rather than raw AIMessageChunks, since Runnable's generic contract
// fixes one Output type across Invoke/Batch/Stream.
type ChatRunnable struct {
	Model *Model
	Stop  []string
}

// AsRunnable wraps m for use inside the runnable composition layer.
func (m *Model) AsRunnable(stop ...string) ChatRunnable {
	return ChatRunnable{Model: m, Stop: stop}
}

func configureOptionsFromRunnable(cfg runnable.Config) callbacks.ConfigureOptions {
	return callbacks.ConfigureOptions{
		InheritableManager:   cfg.Manager(),
		InheritableCallbacks: cfg.Callbacks,
		Verbose:              cfg.Verbose,
		Debug:                cfg.Debug,
		Tracing:              cfg.Tracing,
		InheritableTags:      cfg.Tags,
		InheritableMetadata:  cfg.Metadata,
	}
}

func (r ChatRunnable) Invoke(ctx context.Context, input []schema.Message, cfg runnable.Config) (schema.AIMessage, error) {
	return r.Model.Invoke(ctx, input, configureOptionsFromRunnable(cfg), r.Stop)
}

func (r ChatRunnable) Batch(ctx context.Context, inputs [][]schema.Message, cfg runnable.Config, returnExceptions bool) ([]runnable.Result[schema.AIMessage], error) {
	return runnable.DefaultBatch[[]schema.Message, schema.AIMessage](ctx, r, inputs, cfg, returnExceptions)
}

func (r ChatRunnable) Stream(ctx context.Context, input []schema.Message, cfg runnable.Config) (<-chan runnable.StreamItem[schema.AIMessage], error) {
	chunks, err := r.Model.Stream(ctx, input, configureOptionsFromRunnable(cfg), r.Stop)
	if err != nil {
		return nil, err
	}
	out := make(chan runnable.StreamItem[schema.AIMessage])
	go func() {
		defer close(out)
		for chunk := range chunks {
			out <- runnable.StreamItem[schema.AIMessage]{Value: chunk.ToMessage()}
		}
	}()
	return out, nil
}
