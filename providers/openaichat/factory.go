package openaichat

import (
	"log/slog"

	"github.com/runloom/core/chatmodel"
	"github.com/runloom/core/providers"
	"github.com/runloom/core/providers/openairesponses"
)

// Factory handles creation of OpenAI-backed chatmodel.Adapters, one
// per configured model name (spec.md §7, grounded on the teacher's
// pkg/llm/openailm OpenAIFactory). Models whose configuration demands
// the Responses endpoint get a Responses client instead of a Chat
// Completions one (spec.md §4.9 "OpenAI adapter picks between two
// endpoints").
type Factory struct{}

func (f *Factory) Create(cfg providers.GroupConfig) ([]chatmodel.Adapter, error) {
	var adapters []chatmodel.Adapter

	apiKey := ""
	if len(cfg.APIKeys) > 0 {
		apiKey = cfg.APIKeys[0]
	}

	outputVersion, _ := cfg.Options["output_version"].(string)

	for _, model := range cfg.Models {
		var client chatmodel.Adapter
		var err error
		if openairesponses.ShouldUseResponses(model, cfg.Options, outputVersion, nil) {
			client, err = openairesponses.NewClient("openai", apiKey, model, cfg.BaseURL, cfg.Options)
		} else {
			client, err = NewClient("openai", apiKey, model, cfg.BaseURL, cfg.Options)
		}
		if err != nil {
			slog.Error("failed to create OpenAI client", "model", model, "error", err)
			continue
		}
		adapters = append(adapters, client)
	}
	return adapters, nil
}

func init() {
	providers.Register("openai", &Factory{})
}
