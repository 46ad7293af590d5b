package openairesponses

import (
	"strings"

	"github.com/runloom/core/chatmodel"
)

// responsesOnlyOptions are the config keys whose presence forces the
// Responses endpoint over Chat Completions (spec.md §4.9 "OpenAI
// adapter picks between two endpoints").
var responsesOnlyOptions = []string{
	"reasoning",
	"verbosity",
	"truncation",
	"include",
	"use_previous_response_id",
	"builtin_tools",
}

// ShouldUseResponses reports whether an OpenAI model configuration
// must target /responses instead of /chat/completions: explicit
// opt-in, built-in tools requested, Responses-only params set,
// output_version "responses/v1", or a model family only served there.
func ShouldUseResponses(model string, options map[string]any, outputVersion string, tools []chatmodel.ToolDefinition) bool {
	if use, ok := options["use_responses_api"].(bool); ok {
		return use
	}
	if outputVersion == "responses/v1" {
		return true
	}
	for _, key := range responsesOnlyOptions {
		if _, ok := options[key]; ok {
			return true
		}
	}
	for _, t := range tools {
		if t.Kind == chatmodel.ToolKindBuiltin {
			return true
		}
	}
	return modelRequiresResponses(model)
}

// modelRequiresResponses matches model families that only exist on the
// Responses endpoint.
func modelRequiresResponses(model string) bool {
	m := strings.ToLower(model)
	return strings.HasPrefix(m, "o1-pro") ||
		strings.HasPrefix(m, "o3-pro") ||
		strings.HasPrefix(m, "computer-use") ||
		strings.Contains(m, "deep-research")
}
