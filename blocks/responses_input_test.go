package blocks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runloom/core/schema"
)

func TestMessagesToResponsesInputBuildsConversation(t *testing.T) {
	ai := schema.NewAIMessage("The weather is sunny.")
	ai.ID = "resp_abc"
	ai.ToolCalls = []schema.ToolCall{schema.NewToolCall("call_1", "get_weather", map[string]any{"city": "London"})}

	items := MessagesToResponsesInput([]schema.Message{
		schema.NewSystemMessage("be brief"),
		schema.NewHumanMessage("weather in London?"),
		ai,
		schema.NewToolMessage("call_1", "sunny"),
	})

	require.Len(t, items, 5)
	assert.Equal(t, "message", items[0]["type"])
	assert.Equal(t, "system", items[0]["role"])
	assert.Equal(t, "user", items[1]["role"])

	assert.Equal(t, "assistant", items[2]["role"])
	assert.Equal(t, "resp_abc", items[2]["id"])

	fc := items[3]
	assert.Equal(t, "function_call", fc["type"])
	assert.Equal(t, "call_1", fc["call_id"])
	assert.Equal(t, "get_weather", fc["name"])
	assert.JSONEq(t, `{"city":"London"}`, fc["arguments"].(string))

	fco := items[4]
	assert.Equal(t, "function_call_output", fco["type"])
	assert.Equal(t, "call_1", fco["call_id"])
	assert.Equal(t, "sunny", fco["output"])
}

func TestAIMessageRoundTripsThroughResponsesWire(t *testing.T) {
	ai := schema.NewAIMessage("It is sunny.")
	ai.ID = "resp_xyz"
	ai.ToolCalls = []schema.ToolCall{schema.NewToolCall("call_9", "get_weather", map[string]any{"city": "Oslo"})}

	items := MessagesToResponsesInput([]schema.Message{ai})

	// Feed the wire items back through the output translator, the same
	// path a provider echo would take.
	v1 := OpenAIResponsesToV1(normalizeEcho(items), ResponsesContext{ToolCalls: ai.ToolCalls})

	var text string
	var gotToolCall bool
	for _, b := range v1 {
		switch b.Type {
		case schema.BlockText:
			text += b.Text
		case schema.BlockToolCall:
			gotToolCall = true
			assert.Equal(t, "get_weather", b.ToolName)
			assert.Equal(t, "call_9", b.ToolCallID)
			assert.Equal(t, map[string]any{"city": "Oslo"}, b.Args)
		}
	}
	assert.Equal(t, "It is sunny.", text)
	assert.True(t, gotToolCall)
}

// normalizeEcho rewrites input-shaped message items into the
// output-item shapes OpenAIResponsesToV1 consumes, as the API does
// when echoing a conversation back.
func normalizeEcho(items []map[string]any) []map[string]any {
	var out []map[string]any
	for _, item := range items {
		if item["type"] == "message" {
			parts, _ := item["content"].([]map[string]any)
			for _, p := range parts {
				if p["type"] == "output_text" || p["type"] == "input_text" {
					out = append(out, map[string]any{"type": "text", "text": p["text"]})
				}
			}
			continue
		}
		out = append(out, item)
	}
	return out
}

func TestMessagesToResponsesInputAcceptsV03Kwargs(t *testing.T) {
	ai := schema.NewAIMessage("done")
	ai.AdditionalKwargs = map[string]any{
		"reasoning": map[string]any{
			"id":      "rs_1",
			"summary": []any{map[string]any{"type": "summary_text", "text": "thought"}},
		},
		"refusal":          "cannot comply",
		functionCallIDsKey: map[string]any{"call_1": "fc_item_1"},
		"tool_outputs": []any{
			map[string]any{"type": "web_search_call", "id": "ws_1", "status": "completed"},
		},
	}
	ai.ToolCalls = []schema.ToolCall{schema.NewToolCall("call_1", "lookup", map[string]any{"q": "x"})}

	items := MessagesToResponsesInput([]schema.Message{ai})

	types := make([]string, len(items))
	for i, item := range items {
		types[i], _ = item["type"].(string)
	}
	assert.Contains(t, types, "reasoning")
	assert.Contains(t, types, "web_search_call")

	for _, item := range items {
		switch item["type"] {
		case "function_call":
			assert.Equal(t, "fc_item_1", item["id"], "v0.3 function-call-id mapping must be honored")
		case "message":
			parts := item["content"].([]map[string]any)
			last := parts[len(parts)-1]
			assert.Equal(t, "refusal", last["type"])
		}
	}
}

func TestMessagesToResponsesInputEncodesUserImageBlock(t *testing.T) {
	human := schema.HumanMessage{BaseMessage: schema.BaseMessage{
		Role: schema.RoleHuman,
		Content: schema.BlockContent(
			schema.NewTextBlock("what is this?"),
			schema.ContentBlock{Type: schema.BlockImage, Base64: "abc123", MimeType: "image/png"},
		),
	}}
	items := MessagesToResponsesInput([]schema.Message{human})
	require.Len(t, items, 1)
	parts := items[0]["content"].([]map[string]any)
	require.Len(t, parts, 2)
	assert.Equal(t, "input_image", parts[1]["type"])
	assert.Equal(t, "data:image/png;base64,abc123", parts[1]["image_url"])
}

func TestResponsesReasoningSummaryFansOutPerItem(t *testing.T) {
	item := map[string]any{
		"type": "reasoning",
		"id":   "rs_1",
		"summary": []any{
			map[string]any{"type": "summary_text", "text": "first"},
			map[string]any{"type": "summary_text", "text": "second"},
		},
	}
	out := OpenAIResponsesToV1([]map[string]any{item}, ResponsesContext{})
	require.Len(t, out, 2)
	assert.Equal(t, schema.BlockReasoning, out[0].Type)
	assert.Equal(t, "first", out[0].Text)
	assert.Equal(t, "second", out[1].Text)
	assert.Contains(t, out[0].Index, "lc_rs_")
	assert.NotNil(t, out[0].Extras, "unknown fields ride on the first block only")
	assert.Nil(t, out[1].Extras)
}
