package chatmodel

import (
	"context"
	"time"

	"github.com/runloom/core/schema"
)

// FallbackAdapter tries each underlying Adapter in order, retrying up
// to MaxRetries times per adapter before moving to the next one
// (spec.md §7, grounded on the teacher's pkg/llm FallbackClient).
type FallbackAdapter struct {
	Adapters   []Adapter
	MaxRetries int
	RetryDelay time.Duration
}

func (f *FallbackAdapter) ProviderName() string {
	if len(f.Adapters) == 0 {
		return "fallback"
	}
	return f.Adapters[0].ProviderName()
}

func (f *FallbackAdapter) ModelName() string {
	if len(f.Adapters) == 0 {
		return ""
	}
	return f.Adapters[0].ModelName()
}

func (f *FallbackAdapter) IdentifyingParams() map[string]any {
	names := make([]string, len(f.Adapters))
	for i, a := range f.Adapters {
		names[i] = a.ProviderName() + ":" + a.ModelName()
	}
	return map[string]any{"fallback_chain": names}
}

func (f *FallbackAdapter) Generate(ctx context.Context, messages []schema.Message, stop []string) (schema.ChatResult, error) {
	var lastErr error
	for _, adapter := range f.Adapters {
		for attempt := 0; attempt <= f.MaxRetries; attempt++ {
			result, err := adapter.Generate(ctx, messages, stop)
			if err == nil {
				return result, nil
			}
			lastErr = err
			if attempt < f.MaxRetries {
				f.sleep(ctx)
			}
		}
	}
	return schema.ChatResult{}, lastErr
}

func (f *FallbackAdapter) Stream(ctx context.Context, messages []schema.Message, stop []string) (<-chan schema.AIMessageChunk, error) {
	var lastErr error
	for _, adapter := range f.Adapters {
		for attempt := 0; attempt <= f.MaxRetries; attempt++ {
			chunks, err := adapter.Stream(ctx, messages, stop)
			if err == nil {
				return chunks, nil
			}
			lastErr = err
			if attempt < f.MaxRetries {
				f.sleep(ctx)
			}
		}
	}
	return nil, lastErr
}

func (f *FallbackAdapter) sleep(ctx context.Context) {
	if f.RetryDelay <= 0 {
		return
	}
	t := time.NewTimer(f.RetryDelay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
