// Package callbacks implements the hierarchical, inheritable observation
// tree that every runnable invocation is dispatched through: the Handler
// protocol (spec.md §6.1), the RunManager/CallbackManager tree (spec.md
// §3.5, §4.1-4.2), and event dispatch with strict ordering and error
// isolation (spec.md §4.1, §5).
package callbacks

import (
	"github.com/google/uuid"
	"github.com/runloom/core/schema"
)

// Handler is the capability interface a tracer/observer implements to
// receive events from every runnable invocation it is attached to
// (spec.md §6.1). All On* methods are optional no-ops by default via
// NopHandler, which callers embed to implement only the events they
// care about.
type Handler interface {
	// Name identifies the handler when Configure checks whether an
	// ambient handler (StdOutHandler, DebugHandler, TracingHandler) is
	// already attached; handler lists themselves dedup by pointer
	// equality.
	Name() string

	// RunInline reports whether the handler must be awaited inline
	// during async dispatch (before any non-inline handler observes the
	// same event) rather than scheduled concurrently (spec.md §4.1).
	RunInline() bool

	// RaiseError reports whether a panic/error inside this handler
	// should abort the dispatch sequence instead of being caught and
	// logged (spec.md §4.1).
	RaiseError() bool

	// Ignore* flags let a handler opt out of whole event categories; the
	// dispatcher consults these instead of calling the event method.
	IgnoreLLM() bool
	IgnoreChatModel() bool
	IgnoreChain() bool
	IgnoreAgent() bool
	IgnoreRetriever() bool
	IgnoreRetry() bool
	IgnoreCustomEvent() bool

	OnChatModelStart(serialized map[string]any, messages [][]schema.Message, runID uuid.UUID, parentRunID *uuid.UUID, tags []string, metadata map[string]any)
	OnLLMStart(serialized map[string]any, prompts []string, runID uuid.UUID, parentRunID *uuid.UUID, tags []string, metadata map[string]any)
	OnLLMNewToken(token string, runID uuid.UUID, parentRunID *uuid.UUID, chunk *schema.AIMessageChunk)
	OnLLMEnd(result schema.LLMResult, runID uuid.UUID, parentRunID *uuid.UUID)
	OnLLMError(err error, runID uuid.UUID, parentRunID *uuid.UUID)

	OnChainStart(serialized map[string]any, inputs any, runID uuid.UUID, parentRunID *uuid.UUID, tags []string, metadata map[string]any, name string)
	OnChainEnd(outputs any, runID uuid.UUID, parentRunID *uuid.UUID)
	OnChainError(err error, runID uuid.UUID, parentRunID *uuid.UUID)

	OnToolStart(serialized map[string]any, inputStr string, runID uuid.UUID, parentRunID *uuid.UUID, tags []string, metadata map[string]any, inputs map[string]any)
	OnToolEnd(output any, runID uuid.UUID, parentRunID *uuid.UUID)
	OnToolError(err error, runID uuid.UUID, parentRunID *uuid.UUID)

	OnRetrieverStart(serialized map[string]any, query string, runID uuid.UUID, parentRunID *uuid.UUID, tags []string, metadata map[string]any)
	OnRetrieverEnd(documents any, runID uuid.UUID, parentRunID *uuid.UUID)
	OnRetrieverError(err error, runID uuid.UUID, parentRunID *uuid.UUID)

	OnAgentAction(action any, runID uuid.UUID, parentRunID *uuid.UUID)
	OnAgentFinish(finish any, runID uuid.UUID, parentRunID *uuid.UUID)

	OnRetry(retryState any, runID uuid.UUID, parentRunID *uuid.UUID)
	OnText(text string, runID uuid.UUID, parentRunID *uuid.UUID, tags []string, name string)
	OnCustomEvent(name string, data any, runID uuid.UUID, tags []string, metadata map[string]any)
}

// NopHandler is a zero-value Handler implementation handlers embed to
// pick up default no-op behavior for events they don't care about.
// RunInline defaults to false (concurrent dispatch), RaiseError to
// false (errors are caught and logged), and no Ignore* flag is set.
type NopHandler struct{}

func (NopHandler) Name() string            { return "NopHandler" }
func (NopHandler) RunInline() bool         { return false }
func (NopHandler) RaiseError() bool        { return false }
func (NopHandler) IgnoreLLM() bool         { return false }
func (NopHandler) IgnoreChatModel() bool   { return false }
func (NopHandler) IgnoreChain() bool       { return false }
func (NopHandler) IgnoreAgent() bool       { return false }
func (NopHandler) IgnoreRetriever() bool   { return false }
func (NopHandler) IgnoreRetry() bool       { return false }
func (NopHandler) IgnoreCustomEvent() bool { return false }

func (NopHandler) OnChatModelStart(map[string]any, [][]schema.Message, uuid.UUID, *uuid.UUID, []string, map[string]any) {
}
func (NopHandler) OnLLMStart(map[string]any, []string, uuid.UUID, *uuid.UUID, []string, map[string]any) {
}
func (NopHandler) OnLLMNewToken(string, uuid.UUID, *uuid.UUID, *schema.AIMessageChunk) {}
func (NopHandler) OnLLMEnd(schema.LLMResult, uuid.UUID, *uuid.UUID)                    {}
func (NopHandler) OnLLMError(error, uuid.UUID, *uuid.UUID)                             {}

func (NopHandler) OnChainStart(map[string]any, any, uuid.UUID, *uuid.UUID, []string, map[string]any, string) {
}
func (NopHandler) OnChainEnd(any, uuid.UUID, *uuid.UUID)     {}
func (NopHandler) OnChainError(error, uuid.UUID, *uuid.UUID) {}

func (NopHandler) OnToolStart(map[string]any, string, uuid.UUID, *uuid.UUID, []string, map[string]any, map[string]any) {
}
func (NopHandler) OnToolEnd(any, uuid.UUID, *uuid.UUID)     {}
func (NopHandler) OnToolError(error, uuid.UUID, *uuid.UUID) {}

func (NopHandler) OnRetrieverStart(map[string]any, string, uuid.UUID, *uuid.UUID, []string, map[string]any) {
}
func (NopHandler) OnRetrieverEnd(any, uuid.UUID, *uuid.UUID)     {}
func (NopHandler) OnRetrieverError(error, uuid.UUID, *uuid.UUID) {}

func (NopHandler) OnAgentAction(any, uuid.UUID, *uuid.UUID) {}
func (NopHandler) OnAgentFinish(any, uuid.UUID, *uuid.UUID) {}

func (NopHandler) OnRetry(any, uuid.UUID, *uuid.UUID)                             {}
func (NopHandler) OnText(string, uuid.UUID, *uuid.UUID, []string, string)         {}
func (NopHandler) OnCustomEvent(string, any, uuid.UUID, []string, map[string]any) {}
