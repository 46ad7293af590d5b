package providers

import (
	"fmt"
	"log/slog"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/runloom/core/chatmodel"
)

var configJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// RetrySettings configures the fallback chain's retry behavior,
// separate from chatmodel.Model's own cache/rate-limit knobs.
type RetrySettings struct {
	MaxRetries   int
	RetryDelayMs int
}

// NewFromConfig builds a *chatmodel.Model from the raw JSON "llm"
// config section (spec.md §7, grounded on the teacher's
// pkg/llm/loader.go NewFromConfig): each group resolves to a Factory,
// every resulting Adapter across all groups is collected, and more
// than one collapses into a chatmodel.FallbackAdapter.
func NewFromConfig(rawLLM jsoniter.RawMessage, retry RetrySettings) (*chatmodel.Model, error) {
	if rawLLM == nil {
		return nil, fmt.Errorf("missing 'llm' config")
	}

	var groups []GroupConfig
	if err := configJSON.Unmarshal(rawLLM, &groups); err != nil {
		return nil, fmt.Errorf("failed to parse 'llm' config: %w", err)
	}

	var adapters []chatmodel.Adapter
	for _, group := range groups {
		factory, ok := Lookup(group.Type)
		if !ok {
			slog.Warn("unknown provider type", "type", group.Type)
			continue
		}
		created, err := factory.Create(group)
		if err != nil {
			slog.Error("failed to create provider clients", "type", group.Type, "error", err)
			continue
		}
		adapters = append(adapters, created...)
	}

	if len(adapters) == 0 {
		return nil, fmt.Errorf("no LLM adapters could be initialized")
	}

	slog.Info("LLM adapters initialized", "count", len(adapters))

	if len(adapters) == 1 {
		return chatmodel.New(adapters[0]), nil
	}

	return chatmodel.New(&chatmodel.FallbackAdapter{
		Adapters:   adapters,
		MaxRetries: retry.MaxRetries,
		RetryDelay: time.Duration(retry.RetryDelayMs) * time.Millisecond,
	}), nil
}
