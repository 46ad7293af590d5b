package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageContentString(t *testing.T) {
	plain := TextContent("hello")
	assert.Equal(t, "hello", plain.String())
	assert.False(t, plain.IsBlocks())

	blocks := BlockContent(NewTextBlock("a"), NewReasoningBlock("skip-reasoning-from-text"), NewTextBlock("b"))
	assert.True(t, blocks.IsBlocks())
	assert.Equal(t, "ab", blocks.String())
}

func TestAIMessageChunkToMessage(t *testing.T) {
	chunk := AIMessageChunk{
		BaseMessage:   BaseMessage{Role: RoleAI, Content: TextContent("done"), ID: "lc_run-abc"},
		ToolCalls:     []ToolCall{NewToolCall("1", "get_weather", map[string]any{"city": "London"})},
		ChunkPosition: ChunkPositionLast,
	}
	msg := chunk.ToMessage()
	assert.Equal(t, "done", msg.Text())
	assert.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "get_weather", msg.ToolCalls[0].Name)
}

func TestRemoveMessageHasNoText(t *testing.T) {
	rm := NewRemoveMessage("lc_run-123")
	assert.Equal(t, "", rm.Text())
	assert.Equal(t, "lc_run-123", rm.Base().ID)
}
