package blocks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runloom/core/schema"
)

func TestAnthropicToV1ConvertsTextThinkingAndToolUse(t *testing.T) {
	parts := []map[string]any{
		{"type": "thinking", "thinking": "let me check", "signature": "sig_abc"},
		{"type": "text", "text": "The answer is 4."},
		{"type": "tool_use", "id": "toolu_1", "name": "calculator", "input": map[string]any{"expr": "2+2"}},
	}
	out := AnthropicToV1(parts)
	require.Len(t, out, 3)

	assert.Equal(t, schema.BlockReasoning, out[0].Type)
	assert.Equal(t, "let me check", out[0].Text)
	assert.Equal(t, "sig_abc", out[0].Extras["signature"])

	assert.Equal(t, schema.BlockText, out[1].Type)

	assert.Equal(t, schema.BlockToolCall, out[2].Type)
	assert.Equal(t, "toolu_1", out[2].ToolCallID)
	assert.Equal(t, map[string]any{"expr": "2+2"}, out[2].Args)
}

func TestAnthropicToV1ConvertsBase64Image(t *testing.T) {
	parts := []map[string]any{
		{"type": "image", "source": map[string]any{"type": "base64", "media_type": "image/jpeg", "data": "xyz"}},
	}
	out := AnthropicToV1(parts)
	require.Len(t, out, 1)
	assert.Equal(t, schema.BlockImage, out[0].Type)
	assert.Equal(t, "image/jpeg", out[0].MimeType)
	assert.Equal(t, "xyz", out[0].Base64)
}

func TestAnthropicToV1WrapsUnknownAsNonStandard(t *testing.T) {
	parts := []map[string]any{
		{"type": "brand_new_block", "payload": "data"},
	}
	out := AnthropicToV1(parts)
	require.Len(t, out, 1)
	assert.Equal(t, schema.BlockNonStandard, out[0].Type)
	assert.NotEmpty(t, out[0].Value, "original JSON must be preserved, never discarded")
}
