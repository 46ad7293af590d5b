package ollama

import (
	"log/slog"

	"github.com/runloom/core/chatmodel"
	"github.com/runloom/core/providers"
)

// Factory handles creation of Ollama-backed chatmodel.Adapters
// (spec.md §7, grounded on the teacher's pkg/llm/ollama OllamaFactory).
type Factory struct{}

func (f *Factory) Create(cfg providers.GroupConfig) ([]chatmodel.Adapter, error) {
	var adapters []chatmodel.Adapter
	for _, model := range cfg.Models {
		client, err := NewClient(model, cfg.BaseURL, cfg.Options)
		if err != nil {
			slog.Error("failed to create Ollama client", "model", model, "error", err)
			continue
		}
		adapters = append(adapters, client)
	}
	return adapters, nil
}

func init() {
	providers.Register("ollama", &Factory{})
}
