package blocks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runloom/core/schema"
)

func TestOpenAIChatToV1DecomposesDataURIImage(t *testing.T) {
	parts := []map[string]any{
		{"type": "image_url", "image_url": map[string]any{"url": "data:image/png;base64,abc123", "detail": "high"}},
	}
	out := OpenAIChatToV1(parts, nil)
	require.Len(t, out, 1)
	assert.Equal(t, schema.BlockImage, out[0].Type)
	assert.Equal(t, "image/png", out[0].MimeType)
	assert.Equal(t, "abc123", out[0].Base64)
	assert.Equal(t, "high", out[0].Extras["detail"])
}

func TestOpenAIChatToV1MaterializesReasoningFromAdditionalKwargs(t *testing.T) {
	out := OpenAIChatToV1(nil, map[string]any{"reasoning_content": "thinking..."})
	require.Len(t, out, 1)
	assert.Equal(t, schema.BlockReasoning, out[0].Type)
}

func TestV1ToOpenAIChatRoundTripsImageURL(t *testing.T) {
	blocks := []schema.ContentBlock{{Type: schema.BlockImage, URL: "https://example.com/a.png"}}
	parts := V1ToOpenAIChat(blocks)
	require.Len(t, parts, 1)
	imgURL := parts[0]["image_url"].(map[string]any)
	assert.Equal(t, "https://example.com/a.png", imgURL["url"])
}

func TestOpenAIResponsesFunctionCallResolvesAgainstContextToolCalls(t *testing.T) {
	item := map[string]any{"type": "function_call", "call_id": "call_1", "name": "get_weather", "id": "item_1"}
	ctx := ResponsesContext{ToolCalls: []schema.ToolCall{schema.NewToolCall("call_1", "get_weather", map[string]any{"city": "NYC"})}}
	out := OpenAIResponsesToV1([]map[string]any{item}, ctx)
	require.Len(t, out, 1)
	assert.Equal(t, schema.BlockToolCall, out[0].Type)
	assert.Equal(t, "item_1", out[0].Extras["item_id"])
}

func TestOpenAIResponsesServerToolCallPairsCallAndResult(t *testing.T) {
	item := map[string]any{"type": "web_search_call", "status": "completed"}
	out := OpenAIResponsesToV1([]map[string]any{item}, ResponsesContext{})
	require.Len(t, out, 2)
	assert.Equal(t, schema.BlockServerToolCall, out[0].Type)
	assert.Equal(t, schema.BlockServerToolResult, out[1].Type)
	assert.Equal(t, "success", out[1].ResultStatus)
}

func TestParseOllamaToolArgsStripsFunctionNamePseudoKey(t *testing.T) {
	args := ParseOllamaToolArgs(map[string]any{"functionName": "get_weather", "city": "Paris"})
	_, hasFunctionName := args["functionName"]
	assert.False(t, hasFunctionName)
	assert.Equal(t, "Paris", args["city"])
}

func TestParseOllamaToolArgsDecodesJSONString(t *testing.T) {
	args := ParseOllamaToolArgs(`{"city":"Paris"}`)
	assert.Equal(t, "Paris", args["city"])
}
