package streaming

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runloom/core/schema"
)

func idx(i int) *int { return &i }

func TestAddConcatenatesTextContent(t *testing.T) {
	a := schema.AIMessageChunk{BaseMessage: schema.BaseMessage{Content: schema.TextContent("Hel")}}
	b := schema.AIMessageChunk{BaseMessage: schema.BaseMessage{Content: schema.TextContent("lo")}}
	out := Add(a, b)
	assert.Equal(t, "Hello", out.Content.String())
}

func TestAddMergesToolCallChunksByIndex(t *testing.T) {
	a := schema.AIMessageChunk{ToolCallChunks: []schema.ToolCallChunk{
		{Name: "get_weather", Index: idx(0), ID: "call_1"},
	}}
	b := schema.AIMessageChunk{ToolCallChunks: []schema.ToolCallChunk{
		{Args: `{"city"`, Index: idx(0)},
		{Args: `:"NYC"}`, Index: idx(0)},
	}}
	out := Add(Add(a, b), schema.AIMessageChunk{})
	require.Len(t, out.ToolCallChunks, 1)
	assert.Equal(t, "get_weather", out.ToolCallChunks[0].Name)
	assert.Equal(t, "call_1", out.ToolCallChunks[0].ID)
	assert.Equal(t, `{"city":"NYC"}`, out.ToolCallChunks[0].Args)
}

func TestAddSumsUsage(t *testing.T) {
	a := schema.AIMessageChunk{UsageMetadata: schema.NewUsageMetadata(10, 0)}
	b := schema.AIMessageChunk{UsageMetadata: schema.NewUsageMetadata(0, 5)}
	out := Add(a, b)
	require.NotNil(t, out.UsageMetadata)
	assert.EqualValues(t, 10, out.UsageMetadata.InputTokens)
	assert.EqualValues(t, 5, out.UsageMetadata.OutputTokens)
}

func TestAddPrefersNonReservedID(t *testing.T) {
	a := schema.AIMessageChunk{BaseMessage: schema.BaseMessage{ID: "lc_run-abc"}}
	b := schema.AIMessageChunk{BaseMessage: schema.BaseMessage{ID: "chatcmpl-real-id"}}
	out := Add(a, b)
	assert.Equal(t, "chatcmpl-real-id", out.ID)
}

func TestAddChunkPositionBecomesLastIfEitherIs(t *testing.T) {
	a := schema.AIMessageChunk{ChunkPosition: schema.ChunkPositionMid}
	b := schema.AIMessageChunk{ChunkPosition: schema.ChunkPositionLast}
	out := Add(a, b)
	assert.Equal(t, schema.ChunkPositionLast, out.ChunkPosition)
}

func TestBlockIndexTrackerAssignsStableIndices(t *testing.T) {
	tr := NewBlockIndexTracker()
	first := tr.Apply([]schema.ContentBlock{schema.NewTextBlock("a")})
	second := tr.Apply([]schema.ContentBlock{schema.NewReasoningBlock("thinking")})
	third := tr.Apply([]schema.ContentBlock{schema.NewTextBlock("b")})

	assert.Equal(t, "0", first[0].Index)
	assert.Equal(t, "1", second[0].Index)
	assert.Equal(t, "2", third[0].Index)
}

func TestFinalizePromotesToolCallChunkToToolCall(t *testing.T) {
	chunk := schema.AIMessageChunk{
		ChunkPosition: schema.ChunkPositionLast,
		ToolCallChunks: []schema.ToolCallChunk{
			{Name: "get_weather", ID: "call_1", Args: `{"city":"NYC"}`, Index: idx(0)},
		},
	}
	out := Finalize(chunk)
	require.Len(t, out.ToolCalls, 1)
	assert.Equal(t, "get_weather", out.ToolCalls[0].Name)
	assert.Equal(t, "NYC", out.ToolCalls[0].Args["city"])
}

func TestFinalizeDemotesUnparseableArgsToInvalidToolCall(t *testing.T) {
	chunk := schema.AIMessageChunk{
		ChunkPosition: schema.ChunkPositionLast,
		ToolCallChunks: []schema.ToolCallChunk{
			{Name: "broken", Args: `{not json`, Index: idx(0)},
		},
	}
	out := Finalize(chunk)
	require.Len(t, out.InvalidToolCalls, 1)
	assert.Equal(t, "broken", out.InvalidToolCalls[0].Name)
	assert.NotEmpty(t, out.InvalidToolCalls[0].Error)
}

func TestFinalizeIsNoopForMidStreamChunk(t *testing.T) {
	chunk := schema.AIMessageChunk{
		ChunkPosition:  schema.ChunkPositionMid,
		ToolCallChunks: []schema.ToolCallChunk{{Name: "x", Index: idx(0)}},
	}
	out := Finalize(chunk)
	assert.Empty(t, out.ToolCalls)
}
