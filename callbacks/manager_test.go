package callbacks

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runloom/core/schema"
)

// recordingHandler captures the event sequence it observes, in order.
type recordingHandler struct {
	NopHandler
	mu     sync.Mutex
	name   string
	events []string
	runIDs []uuid.UUID
}

func newRecorder(name string) *recordingHandler { return &recordingHandler{name: name} }

func (h *recordingHandler) Name() string { return h.name }

func (h *recordingHandler) record(event string, runID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	h.runIDs = append(h.runIDs, runID)
}

func (h *recordingHandler) Events() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.events...)
}

func (h *recordingHandler) OnChatModelStart(_ map[string]any, _ [][]schema.Message, runID uuid.UUID, _ *uuid.UUID, _ []string, _ map[string]any) {
	h.record("chat_model_start", runID)
}

func (h *recordingHandler) OnLLMNewToken(_ string, runID uuid.UUID, _ *uuid.UUID, _ *schema.AIMessageChunk) {
	h.record("new_token", runID)
}

func (h *recordingHandler) OnLLMEnd(_ schema.LLMResult, runID uuid.UUID, _ *uuid.UUID) {
	h.record("llm_end", runID)
}

func (h *recordingHandler) OnLLMError(_ error, runID uuid.UUID, _ *uuid.UUID) {
	h.record("llm_error", runID)
}

func (h *recordingHandler) OnChainStart(_ map[string]any, _ any, runID uuid.UUID, _ *uuid.UUID, _ []string, _ map[string]any, _ string) {
	h.record("chain_start", runID)
}

func (h *recordingHandler) OnChainEnd(_ any, runID uuid.UUID, _ *uuid.UUID) {
	h.record("chain_end", runID)
}

func (h *recordingHandler) OnChainError(_ error, runID uuid.UUID, _ *uuid.UUID) {
	h.record("chain_error", runID)
}

// panickyHandler panics on every chain start.
type panickyHandler struct {
	NopHandler
	raise bool
}

func (h *panickyHandler) Name() string     { return "panicky" }
func (h *panickyHandler) RaiseError() bool { return h.raise }
func (h *panickyHandler) OnChainStart(map[string]any, any, uuid.UUID, *uuid.UUID, []string, map[string]any, string) {
	panic(errors.New("handler blew up"))
}

func TestHandlersRunInRegistrationOrder(t *testing.T) {
	var order []string
	var mu sync.Mutex
	mk := func(name string) Handler {
		h := newRecorder(name)
		return handlerFunc{h, func() {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		}}
	}
	cm := Configure(context.Background(), ConfigureOptions{
		InheritableCallbacks: []Handler{mk("first"), mk("second"), mk("third")},
	})
	cm.OnChainStart(nil, nil, nil, "test")
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

// handlerFunc wraps a recorder so chain start additionally invokes fn.
type handlerFunc struct {
	*recordingHandler
	fn func()
}

func (h handlerFunc) OnChainStart(s map[string]any, i any, r uuid.UUID, p *uuid.UUID, tags []string, md map[string]any, name string) {
	h.fn()
	h.recordingHandler.OnChainStart(s, i, r, p, tags, md, name)
}

func TestHandlerPanicDoesNotBlockSiblings(t *testing.T) {
	sibling := newRecorder("sibling")
	cm := Configure(context.Background(), ConfigureOptions{
		InheritableCallbacks: []Handler{&panickyHandler{}, sibling},
	})
	require.NotPanics(t, func() {
		cm.OnChainStart(nil, nil, nil, "test")
	})
	assert.Equal(t, []string{"chain_start"}, sibling.Events())
}

func TestRaiseErrorHandlerAbortsDispatch(t *testing.T) {
	sibling := newRecorder("sibling")
	cm := Configure(context.Background(), ConfigureOptions{
		InheritableCallbacks: []Handler{&panickyHandler{raise: true}, sibling},
	})
	require.Panics(t, func() {
		cm.OnChainStart(nil, nil, nil, "test")
	})
	assert.Empty(t, sibling.Events())
}

func TestChatModelStartProducesOneManagerPerMessageList(t *testing.T) {
	h := newRecorder("h")
	cm := Configure(context.Background(), ConfigureOptions{InheritableCallbacks: []Handler{h}})

	supplied := uuid.New()
	lists := [][]schema.Message{
		{schema.NewHumanMessage("one")},
		{schema.NewHumanMessage("two")},
	}
	managers := cm.OnChatModelStart(nil, lists, &supplied)

	require.Len(t, managers, 2)
	assert.Equal(t, supplied, managers[0].RunID)
	assert.NotEqual(t, supplied, managers[1].RunID)
	assert.Equal(t, []string{"chat_model_start", "chat_model_start"}, h.Events())
}

func TestGetChildInheritsOnlyInheritableState(t *testing.T) {
	inherited := newRecorder("inherited")
	local := newRecorder("local")
	cm := Configure(context.Background(), ConfigureOptions{
		InheritableCallbacks: []Handler{inherited},
		LocalCallbacks:       []Handler{local},
		InheritableTags:      []string{"keep"},
		LocalTags:            []string{"drop"},
		InheritableMetadata:  map[string]any{"keep": true},
		LocalMetadata:        map[string]any{"drop": true},
	})

	rm := cm.OnChainStart(nil, nil, nil, "parent")
	assert.Equal(t, []string{"chain_start"}, inherited.Events())
	assert.Equal(t, []string{"chain_start"}, local.Events())

	child := rm.GetChild("child-tag")
	childRM := child.OnChainStart(nil, nil, nil, "child")

	assert.Equal(t, []string{"chain_start", "chain_start"}, inherited.Events())
	assert.Equal(t, []string{"chain_start"}, local.Events(), "local handler must not propagate to children")

	assert.Contains(t, childRM.Tags, "keep")
	assert.Contains(t, childRM.Tags, "child-tag")
	assert.NotContains(t, childRM.Tags, "drop")
	assert.Contains(t, childRM.Metadata, "keep")
	assert.NotContains(t, childRM.Metadata, "drop")

	require.NotNil(t, childRM.ParentRunID)
	assert.Equal(t, rm.RunID, *childRM.ParentRunID)
}

func TestEveryStartIsPairedWithExactlyOneTerminal(t *testing.T) {
	h := newRecorder("h")
	cm := Configure(context.Background(), ConfigureOptions{InheritableCallbacks: []Handler{h}})

	rm := cm.OnChainStart(nil, nil, nil, "ok")
	rm.OnEnd(nil)

	rm2 := cm.OnChainStart(nil, nil, nil, "bad")
	rm2.OnError(errors.New("boom"))

	assert.Equal(t, []string{"chain_start", "chain_end", "chain_start", "chain_error"}, h.Events())
	assert.Equal(t, h.runIDs[0], h.runIDs[1])
	assert.Equal(t, h.runIDs[2], h.runIDs[3])
	assert.NotEqual(t, h.runIDs[0], h.runIDs[2])
}

func TestDispatchCustomEventRequiresParentRun(t *testing.T) {
	cm := Configure(context.Background(), ConfigureOptions{})
	err := DispatchCustomEvent(cm, "my_event", nil)
	require.Error(t, err)

	rm := cm.OnChainStart(nil, nil, nil, "parent")
	child := rm.GetChild("")
	require.NoError(t, DispatchCustomEvent(child, "my_event", map[string]any{"k": "v"}))
}

func TestConfigureDedupsHandlersByPointer(t *testing.T) {
	h := newRecorder("h")
	cm := Configure(context.Background(), ConfigureOptions{
		InheritableCallbacks: []Handler{h, h},
		LocalCallbacks:       []Handler{h},
	})
	cm.OnChainStart(nil, nil, nil, "test")
	assert.Equal(t, []string{"chain_start"}, h.Events())
}

func TestVerboseAutoAttachesStdOutHandlerOnce(t *testing.T) {
	cm := Configure(context.Background(), ConfigureOptions{
		Verbose:              true,
		InheritableCallbacks: []Handler{NewStdOutHandler()},
	})
	count := 0
	for _, h := range cm.handlers {
		if h.Name() == "StdOutHandler" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}
