package chatmodel

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runloom/core/cache"
	"github.com/runloom/core/callbacks"
	"github.com/runloom/core/schema"
)

// fakeAdapter scripts Generate/Stream responses for pipeline tests.
type fakeAdapter struct {
	generateCalls atomic.Int32
	streamCalls   atomic.Int32

	reply  schema.AIMessage
	chunks []schema.AIMessageChunk
}

func (f *fakeAdapter) IdentifyingParams() map[string]any {
	return map[string]any{"provider": "fake", "model": "fake-1", "temperature": 0}
}
func (f *fakeAdapter) ProviderName() string { return "fake" }
func (f *fakeAdapter) ModelName() string    { return "fake-1" }

func (f *fakeAdapter) Generate(_ context.Context, _ []schema.Message, _ []string) (schema.ChatResult, error) {
	f.generateCalls.Add(1)
	return schema.ChatResult{Generations: []schema.ChatGeneration{{Message: f.reply}}}, nil
}

func (f *fakeAdapter) Stream(ctx context.Context, _ []schema.Message, _ []string) (<-chan schema.AIMessageChunk, error) {
	f.streamCalls.Add(1)
	out := make(chan schema.AIMessageChunk, len(f.chunks))
	for _, c := range f.chunks {
		out <- c
	}
	close(out)
	return out, nil
}

// eventRecorder captures LLM-role events for assertion.
type eventRecorder struct {
	callbacks.NopHandler
	mu     sync.Mutex
	events []string
	runIDs []uuid.UUID
	tokens []string
}

func (h *eventRecorder) Name() string { return "eventRecorder" }

func (h *eventRecorder) record(event string, runID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	h.runIDs = append(h.runIDs, runID)
}

func (h *eventRecorder) OnChatModelStart(_ map[string]any, _ [][]schema.Message, runID uuid.UUID, _ *uuid.UUID, _ []string, _ map[string]any) {
	h.record("start", runID)
}

func (h *eventRecorder) OnLLMNewToken(token string, runID uuid.UUID, _ *uuid.UUID, _ *schema.AIMessageChunk) {
	h.mu.Lock()
	h.tokens = append(h.tokens, token)
	h.mu.Unlock()
	h.record("token", runID)
}

func (h *eventRecorder) OnLLMEnd(_ schema.LLMResult, runID uuid.UUID, _ *uuid.UUID) {
	h.record("end", runID)
}

func (h *eventRecorder) OnLLMError(_ error, runID uuid.UUID, _ *uuid.UUID) {
	h.record("error", runID)
}

func (h *eventRecorder) Events() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.events...)
}

func withUsage(msg schema.AIMessage, in, out int64) schema.AIMessage {
	msg.UsageMetadata = schema.NewUsageMetadata(in, out)
	return msg
}

func TestInvokeReturnsMessageWithUsageAndPairedEvents(t *testing.T) {
	adapter := &fakeAdapter{reply: withUsage(schema.NewAIMessage("Hi there"), 3, 5)}
	model := New(adapter)
	model.DisableStreaming = StreamingDisabled

	recorder := &eventRecorder{}
	cfg := callbacks.ConfigureOptions{InheritableCallbacks: []callbacks.Handler{recorder}}

	msg, err := model.Invoke(context.Background(), []schema.Message{schema.NewHumanMessage("Hello")}, cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "Hi there", msg.Text())
	require.NotNil(t, msg.UsageMetadata)
	assert.Greater(t, msg.UsageMetadata.TotalTokens, int64(0))

	events := recorder.Events()
	assert.Equal(t, []string{"start", "end"}, events)
	assert.Equal(t, recorder.runIDs[0], recorder.runIDs[1])
}

func TestStreamConcatenatesChunksAndFiresTokensBeforeEnd(t *testing.T) {
	mkChunk := func(text string) schema.AIMessageChunk {
		return schema.AIMessageChunk{BaseMessage: schema.BaseMessage{Role: schema.RoleAI, Content: schema.TextContent(text)}}
	}
	last := schema.AIMessageChunk{ChunkPosition: schema.ChunkPositionLast}
	adapter := &fakeAdapter{chunks: []schema.AIMessageChunk{mkChunk("Hello, "), mkChunk("world!"), last}}
	model := New(adapter)

	recorder := &eventRecorder{}
	cfg := callbacks.ConfigureOptions{InheritableCallbacks: []callbacks.Handler{recorder}}

	chunks, err := model.Stream(context.Background(), []schema.Message{schema.NewHumanMessage("hi")}, cfg, nil)
	require.NoError(t, err)

	var texts []string
	for c := range chunks {
		texts = append(texts, c.Text())
	}
	assert.Equal(t, []string{"Hello, ", "world!", ""}, texts)

	events := recorder.Events()
	require.GreaterOrEqual(t, len(events), 2)
	assert.Equal(t, "start", events[0])
	assert.Equal(t, "end", events[len(events)-1])
	assert.Contains(t, recorder.tokens, "Hello, ")
	assert.Contains(t, recorder.tokens, "world!")
}

func TestStreamAggregatesToolCallChunksAcrossStream(t *testing.T) {
	idx := 0
	first := schema.AIMessageChunk{}
	first.ToolCallChunks = []schema.ToolCallChunk{{ID: "c1", Name: "get_weather", Args: `{"city":`, Index: &idx, Type: "tool_call_chunk"}}
	second := schema.AIMessageChunk{}
	second.ToolCallChunks = []schema.ToolCallChunk{{Args: `"London"}`, Index: &idx, Type: "tool_call_chunk"}}
	last := schema.AIMessageChunk{ChunkPosition: schema.ChunkPositionLast}

	adapter := &fakeAdapter{chunks: []schema.AIMessageChunk{first, second, last}}
	model := New(adapter)
	model.StreamingFlag = true

	result, err := model.Generate(context.Background(), [][]schema.Message{{schema.NewHumanMessage("weather?")}}, callbacks.ConfigureOptions{}, nil)
	require.NoError(t, err)

	msg := result.Generations[0][0].Message
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "get_weather", msg.ToolCalls[0].Name)
	assert.Equal(t, map[string]any{"city": "London"}, msg.ToolCalls[0].Args)
	assert.Equal(t, "c1", msg.ToolCalls[0].ID)
	assert.Empty(t, msg.InvalidToolCalls)
}

func TestCacheHitShortCircuitsProvider(t *testing.T) {
	adapter := &fakeAdapter{reply: schema.NewAIMessage("fresh")}
	model := New(adapter)
	model.DisableStreaming = StreamingDisabled

	c := cache.NewInMemoryCache()
	model.WithCache(c)

	messages := []schema.Message{schema.NewHumanMessage("question")}
	promptKey, err := cache.PromptKeyFor(messages)
	require.NoError(t, err)
	llmString, err := cache.LLMStringFor(model.identifyingParamsWithStop(nil))
	require.NoError(t, err)
	require.NoError(t, c.Update(context.Background(), cache.Key{PromptKey: promptKey, LLMString: llmString}, []schema.Generation{{Text: "cached"}}))

	recorder := &eventRecorder{}
	cfg := callbacks.ConfigureOptions{InheritableCallbacks: []callbacks.Handler{recorder}}

	msg, err := model.Invoke(context.Background(), messages, cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "cached", msg.Text())
	assert.Equal(t, int32(0), adapter.generateCalls.Load())
	assert.Equal(t, int32(0), adapter.streamCalls.Load())
	assert.Contains(t, recorder.Events(), "start")
}

func TestCacheRequiredWithoutGlobalIsConfigurationError(t *testing.T) {
	adapter := &fakeAdapter{reply: schema.NewAIMessage("x")}
	model := New(adapter)
	model.DisableStreaming = StreamingDisabled
	model.WithCacheRequired()

	_, err := model.Invoke(context.Background(), []schema.Message{schema.NewHumanMessage("q")}, callbacks.ConfigureOptions{}, nil)
	require.Error(t, err)
}

func TestZeroChunkStreamStillEmitsFinalChunk(t *testing.T) {
	adapter := &fakeAdapter{chunks: nil}
	model := New(adapter)

	chunks, err := model.Stream(context.Background(), []schema.Message{schema.NewHumanMessage("hi")}, callbacks.ConfigureOptions{}, nil)
	require.NoError(t, err)

	var received []schema.AIMessageChunk
	for c := range chunks {
		received = append(received, c)
	}
	require.Len(t, received, 1)
	assert.Equal(t, schema.ChunkPositionLast, received[0].ChunkPosition)
}

func TestGenerateCombinesUsageAcrossBatch(t *testing.T) {
	adapter := &fakeAdapter{reply: withUsage(schema.NewAIMessage("one"), 2, 3)}
	model := New(adapter)
	model.DisableStreaming = StreamingDisabled

	result, err := model.Generate(context.Background(), [][]schema.Message{
		{schema.NewHumanMessage("a")},
		{schema.NewHumanMessage("b")},
	}, callbacks.ConfigureOptions{}, nil)
	require.NoError(t, err)

	require.Len(t, result.Generations, 2)
	usage, ok := result.LLMOutput["usage"].(*schema.UsageMetadata)
	require.True(t, ok)
	assert.Equal(t, int64(10), usage.TotalTokens)
}

func TestDisableStreamingForToolCallingFallsBackToGenerate(t *testing.T) {
	adapter := &fakeAdapter{reply: schema.NewAIMessage("plain")}
	model := New(adapter)
	model.DisableStreaming = StreamingDisabledForToolCalling
	model.ToolsBound = true
	model.StreamingFlag = true

	msg, err := model.Invoke(context.Background(), []schema.Message{schema.NewHumanMessage("q")}, callbacks.ConfigureOptions{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "plain", msg.Text())
	assert.Equal(t, int32(1), adapter.generateCalls.Load())
	assert.Equal(t, int32(0), adapter.streamCalls.Load())
}
