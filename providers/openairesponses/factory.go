package openairesponses

import (
	"log/slog"

	"github.com/runloom/core/chatmodel"
	"github.com/runloom/core/providers"
)

// Factory handles creation of Responses-backed chatmodel.Adapters.
// Registered as "openai-responses"; the plain "openai" type routes
// here automatically when ShouldUseResponses says so (see the
// openaichat factory).
type Factory struct{}

func (f *Factory) Create(cfg providers.GroupConfig) ([]chatmodel.Adapter, error) {
	var adapters []chatmodel.Adapter

	apiKey := ""
	if len(cfg.APIKeys) > 0 {
		apiKey = cfg.APIKeys[0]
	}

	for _, model := range cfg.Models {
		client, err := NewClient("openai", apiKey, model, cfg.BaseURL, cfg.Options)
		if err != nil {
			slog.Error("failed to create OpenAI Responses client", "model", model, "error", err)
			continue
		}
		adapters = append(adapters, client)
	}
	return adapters, nil
}

func init() {
	providers.Register("openai-responses", &Factory{})
}
