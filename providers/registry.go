// Package providers holds the provider-agnostic registry/loader
// wiring (spec.md §7, grounded on the teacher's pkg/llm/registry.go and
// loader.go) plus one subpackage per concrete provider adapter.
package providers

import (
	"github.com/runloom/core/chatmodel"
)

// GroupConfig configures a cluster of models from a single provider
// (spec.md §7, grounded on the teacher's ProviderGroupConfig). Gemini's
// thought-signature flag is dropped along with the Gemini provider
// itself (see DESIGN.md).
type GroupConfig struct {
	Type    string         `json:"type"`
	APIKeys []string       `json:"api_keys,omitempty"`
	Models  []string       `json:"models"`
	BaseURL string         `json:"base_url,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

// Factory instantiates one or more chatmodel.Adapter values from a
// GroupConfig. Each provider package registers one in its init().
type Factory interface {
	Create(group GroupConfig) ([]chatmodel.Adapter, error)
}

var registry = make(map[string]Factory)

// Register adds a Factory to the global registry, keyed by provider type.
func Register(name string, factory Factory) {
	registry[name] = factory
}

// Lookup returns a registered Factory by provider type.
func Lookup(name string) (Factory, bool) {
	f, ok := registry[name]
	return f, ok
}
