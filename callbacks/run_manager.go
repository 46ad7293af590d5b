package callbacks

import (
	"context"

	"github.com/google/uuid"
	"github.com/runloom/core/schema"
)

// RunManager is the single concrete handle a runnable invocation holds
// once started: its run identity, the handler set inherited (and
// extended) from its parent, and the tags/metadata attached to it.
//
// The original implementation this system is grounded on splits this
// into a BaseRunManager plus RunManager/AsyncRunManager/
// AsyncParentRunManager wrappers, one layer per sync/async/parent
// combination. Go has no need for that axis: one struct carries every
// field, and the role-specific views below (LLMRunManager,
// ChainRunManager, ToolRunManager, RetrieverRunManager) are thin
// method sets over the same pointer rather than separate types in an
// inheritance chain (spec.md §5.5, §9).
type RunManager struct {
	RunID       uuid.UUID
	ParentRunID *uuid.UUID

	Handlers            []Handler
	InheritableHandlers []Handler

	Tags            []string
	InheritableTags []string

	Metadata            map[string]any
	InheritableMetadata map[string]any
}

// NoopRunManager returns a RunManager with no handlers attached, for
// call sites that need a manager to satisfy a signature but have no
// tracing configured (spec.md §7, grounded on get_noop_manager in the
// original callback manager).
func NoopRunManager() *RunManager {
	return &RunManager{RunID: uuid.New()}
}

// GetChild derives a CallbackManager for a nested invocation: the
// child's run_id is fresh, its parent_run_id is this manager's run_id,
// and it starts from the inheritable handlers/tags/metadata only —
// handlers attached to this run specifically (not inheritable) do not
// propagate further down (spec.md §4.1).
func (rm *RunManager) GetChild(tag string) *CallbackManager {
	tags := append([]string(nil), rm.InheritableTags...)
	if tag != "" {
		tags = append(tags, tag)
	}
	return &CallbackManager{
		parentRunID:         &rm.RunID,
		handlers:            append([]Handler(nil), rm.InheritableHandlers...),
		inheritableHandlers: append([]Handler(nil), rm.InheritableHandlers...),
		tags:                tags,
		inheritableTags:     append([]string(nil), rm.InheritableTags...),
		metadata:            cloneMap(rm.InheritableMetadata),
		inheritableMetadata: cloneMap(rm.InheritableMetadata),
	}
}

func (rm *RunManager) onText(text, name string) {
	handleEvent(rm.Handlers, eventAlways, func(h Handler) {
		h.OnText(text, rm.RunID, rm.ParentRunID, rm.Tags, name)
	})
}

func (rm *RunManager) onRetry(retryState any) {
	handleEvent(rm.Handlers, eventRetry, func(h Handler) {
		h.OnRetry(retryState, rm.RunID, rm.ParentRunID)
	})
}

func (rm *RunManager) aOnText(ctx context.Context, text, name string) {
	ahandleEvent(ctx, rm.Handlers, eventAlways, func(_ context.Context, h Handler) {
		h.OnText(text, rm.RunID, rm.ParentRunID, rm.Tags, name)
	})
}

func (rm *RunManager) aOnRetry(ctx context.Context, retryState any) {
	ahandleEvent(ctx, rm.Handlers, eventRetry, func(_ context.Context, h Handler) {
		h.OnRetry(retryState, rm.RunID, rm.ParentRunID)
	})
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// LLMRunManager is the view exposed to an LLM call, chat-model calls
// included (OnChatModelStart returns it): it can report new tokens,
// end, error, and retry.
type LLMRunManager struct{ *RunManager }

func (m LLMRunManager) OnNewToken(token string, chunk *schema.AIMessageChunk) {
	handleEvent(m.Handlers, eventLLM, func(h Handler) {
		h.OnLLMNewToken(token, m.RunID, m.ParentRunID, chunk)
	})
}

func (m LLMRunManager) OnEnd(result schema.LLMResult) {
	handleEvent(m.Handlers, eventLLM, func(h Handler) {
		h.OnLLMEnd(result, m.RunID, m.ParentRunID)
	})
}

func (m LLMRunManager) OnError(err error) {
	handleEvent(m.Handlers, eventLLM, func(h Handler) {
		h.OnLLMError(err, m.RunID, m.ParentRunID)
	})
}

func (m LLMRunManager) OnText(text string)                   { m.onText(text, "") }
func (m LLMRunManager) OnRetry(state any)                    { m.onRetry(state) }
func (m LLMRunManager) GetChild(tag string) *CallbackManager { return m.RunManager.GetChild(tag) }

// ChainRunManager is the view exposed to chain/runnable-sequence
// invocations.
type ChainRunManager struct{ *RunManager }

func (m ChainRunManager) OnEnd(outputs any) {
	handleEvent(m.Handlers, eventChain, func(h Handler) {
		h.OnChainEnd(outputs, m.RunID, m.ParentRunID)
	})
}

func (m ChainRunManager) OnError(err error) {
	handleEvent(m.Handlers, eventChain, func(h Handler) {
		h.OnChainError(err, m.RunID, m.ParentRunID)
	})
}

func (m ChainRunManager) OnText(text string) { m.onText(text, "") }
func (m ChainRunManager) OnRetry(state any)  { m.onRetry(state) }
func (m ChainRunManager) OnAgentAction(action any) {
	handleEvent(m.Handlers, eventAgent, func(h Handler) {
		h.OnAgentAction(action, m.RunID, m.ParentRunID)
	})
}
func (m ChainRunManager) OnAgentFinish(finish any) {
	handleEvent(m.Handlers, eventAgent, func(h Handler) {
		h.OnAgentFinish(finish, m.RunID, m.ParentRunID)
	})
}
func (m ChainRunManager) GetChild(tag string) *CallbackManager { return m.RunManager.GetChild(tag) }

// ToolRunManager is the view exposed to tool invocations.
type ToolRunManager struct{ *RunManager }

func (m ToolRunManager) OnEnd(output any) {
	handleEvent(m.Handlers, eventAlways, func(h Handler) {
		h.OnToolEnd(output, m.RunID, m.ParentRunID)
	})
}

func (m ToolRunManager) OnError(err error) {
	handleEvent(m.Handlers, eventAlways, func(h Handler) {
		h.OnToolError(err, m.RunID, m.ParentRunID)
	})
}

func (m ToolRunManager) OnText(text string)                   { m.onText(text, "") }
func (m ToolRunManager) GetChild(tag string) *CallbackManager { return m.RunManager.GetChild(tag) }

// RetrieverRunManager is the view exposed to retriever invocations.
type RetrieverRunManager struct{ *RunManager }

func (m RetrieverRunManager) OnEnd(documents any) {
	handleEvent(m.Handlers, eventRetriever, func(h Handler) {
		h.OnRetrieverEnd(documents, m.RunID, m.ParentRunID)
	})
}

func (m RetrieverRunManager) OnError(err error) {
	handleEvent(m.Handlers, eventRetriever, func(h Handler) {
		h.OnRetrieverError(err, m.RunID, m.ParentRunID)
	})
}

func (m RetrieverRunManager) GetChild(tag string) *CallbackManager { return m.RunManager.GetChild(tag) }
