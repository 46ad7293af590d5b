package openairesponses

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/runloom/core/chatmodel"
)

func TestShouldUseResponsesHonorsExplicitOptIn(t *testing.T) {
	assert.True(t, ShouldUseResponses("gpt-4o", map[string]any{"use_responses_api": true}, "", nil))
	assert.False(t, ShouldUseResponses("gpt-4o", map[string]any{"use_responses_api": false, "reasoning": map[string]any{}}, "", nil))
}

func TestShouldUseResponsesForResponsesOnlyOptions(t *testing.T) {
	for _, key := range []string{"reasoning", "verbosity", "truncation", "include", "use_previous_response_id", "builtin_tools"} {
		assert.True(t, ShouldUseResponses("gpt-4o", map[string]any{key: "x"}, "", nil), key)
	}
	assert.False(t, ShouldUseResponses("gpt-4o", map[string]any{"temperature": 0.5}, "", nil))
}

func TestShouldUseResponsesForBuiltinTools(t *testing.T) {
	tools := []chatmodel.ToolDefinition{{Kind: chatmodel.ToolKindBuiltin, BuiltinType: "web_search"}}
	assert.True(t, ShouldUseResponses("gpt-4o", nil, "", tools))

	fnTools := []chatmodel.ToolDefinition{{Kind: chatmodel.ToolKindFunction, Name: "f"}}
	assert.False(t, ShouldUseResponses("gpt-4o", nil, "", fnTools))
}

func TestShouldUseResponsesForOutputVersionAndModelFamily(t *testing.T) {
	assert.True(t, ShouldUseResponses("gpt-4o", nil, "responses/v1", nil))
	assert.True(t, ShouldUseResponses("o3-pro", nil, "", nil))
	assert.True(t, ShouldUseResponses("computer-use-preview", nil, "", nil))
	assert.False(t, ShouldUseResponses("gpt-4o-mini", nil, "v1", nil))
}
