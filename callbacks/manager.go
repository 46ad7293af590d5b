package callbacks

import (
	"context"
	"fmt"
	"reflect"

	"github.com/google/uuid"
	"github.com/runloom/core/llmerrors"
	"github.com/runloom/core/schema"
)

// ConfigureHook is a pluggable handler factory run during Configure,
// keyed on env vars or ambient context rather than caller-supplied
// arguments (spec.md §4.1 step 5) — e.g. a tracing backend that
// attaches itself when its API key env var is set.
type ConfigureHook func(ctx context.Context) Handler

var configureHooks []ConfigureHook

// RegisterConfigureHook adds a hook Configure runs on every call. Hooks
// that return nil contribute no handler.
func RegisterConfigureHook(hook ConfigureHook) {
	configureHooks = append(configureHooks, hook)
}

// CallbackManager accumulates handlers, tags, and metadata through a
// call tree before an on_<role>_start method turns it into a
// RunManager for one specific invocation.
type CallbackManager struct {
	parentRunID *uuid.UUID

	handlers            []Handler
	inheritableHandlers []Handler

	tags            []string
	inheritableTags []string

	metadata            map[string]any
	inheritableMetadata map[string]any
}

// ConfigureOptions carries the arguments to Configure (spec.md §4.1).
// InheritableCallbacks may be either a raw handler list or an existing
// CallbackManager to seed from, mirroring "either a handler list or an
// existing manager" in the spec prose.
type ConfigureOptions struct {
	InheritableCallbacks []Handler
	InheritableManager   *CallbackManager
	LocalCallbacks       []Handler

	Verbose bool
	Debug   bool
	Tracing bool

	InheritableTags []string
	LocalTags       []string

	InheritableMetadata map[string]any
	LocalMetadata       map[string]any
}

// Configure builds a CallbackManager per spec.md §4.1: seed from
// inheritable callbacks, add local callbacks as non-inheritable,
// append tags/metadata, auto-attach ambient handlers by dedup, then
// run configure hooks.
func Configure(ctx context.Context, opts ConfigureOptions) *CallbackManager {
	cm := &CallbackManager{
		tags:                append([]string(nil), opts.InheritableTags...),
		inheritableTags:     append([]string(nil), opts.InheritableTags...),
		metadata:            cloneMap(opts.InheritableMetadata),
		inheritableMetadata: cloneMap(opts.InheritableMetadata),
	}
	cm.tags = append(cm.tags, opts.LocalTags...)
	for k, v := range opts.LocalMetadata {
		if cm.metadata == nil {
			cm.metadata = map[string]any{}
		}
		cm.metadata[k] = v
	}

	if pm := opts.InheritableManager; pm != nil {
		cm.parentRunID = pm.parentRunID
		cm.handlers = append([]Handler(nil), pm.handlers...)
		cm.inheritableHandlers = append([]Handler(nil), pm.inheritableHandlers...)
		cm.tags = appendMissingStrings(append([]string(nil), pm.tags...), cm.tags)
		cm.inheritableTags = appendMissingStrings(append([]string(nil), pm.inheritableTags...), cm.inheritableTags)
		cm.metadata = mergeMetadata(pm.metadata, cm.metadata)
		cm.inheritableMetadata = mergeMetadata(pm.inheritableMetadata, cm.inheritableMetadata)
	}
	cm.handlers = appendMissingHandlers(cm.handlers, opts.InheritableCallbacks)
	cm.inheritableHandlers = appendMissingHandlers(cm.inheritableHandlers, opts.InheritableCallbacks)

	cm.handlers = appendMissingHandlers(cm.handlers, opts.LocalCallbacks)

	if opts.Verbose && !hasHandlerNamed(cm.handlers, "StdOutHandler") {
		cm.handlers = append(cm.handlers, NewStdOutHandler())
	}
	if opts.Debug && !hasHandlerNamed(cm.handlers, "DebugHandler") {
		cm.handlers = append(cm.handlers, newDebugHandler())
	}
	if opts.Tracing && !hasHandlerNamed(cm.handlers, "TracingHandler") {
		if h := lookupTracingHandler(); h != nil {
			cm.handlers = append(cm.handlers, h)
		}
	}

	for _, hook := range configureHooks {
		if h := hook(ctx); h != nil {
			cm.handlers = append(cm.handlers, h)
			cm.inheritableHandlers = append(cm.inheritableHandlers, h)
		}
	}

	return cm
}

// appendMissingHandlers appends extra handlers not already present;
// identity is pointer equality (spec.md §4.1 "Handler identity for
// deduplication is pointer equality"). A handler whose dynamic type is
// not comparable (e.g. a struct value holding a func) is never treated
// as a duplicate.
func appendMissingHandlers(base, extra []Handler) []Handler {
	for _, h := range extra {
		present := false
		if t := reflect.TypeOf(h); t == nil || t.Comparable() {
			for _, existing := range base {
				if existing == h {
					present = true
					break
				}
			}
		}
		if !present {
			base = append(base, h)
		}
	}
	return base
}

func appendMissingStrings(base, extra []string) []string {
	for _, s := range extra {
		present := false
		for _, existing := range base {
			if existing == s {
				present = true
				break
			}
		}
		if !present {
			base = append(base, s)
		}
	}
	return base
}

func mergeMetadata(base, extra map[string]any) map[string]any {
	if len(base) == 0 {
		return extra
	}
	out := cloneMap(base)
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func hasHandlerNamed(handlers []Handler, name string) bool {
	for _, h := range handlers {
		if h.Name() == name {
			return true
		}
	}
	return false
}

// tracingHandlerFactory is set by a tracing integration package that
// imports callbacks; left nil means no tracing backend is wired,
// matching the module's scope (no bundled tracer, spec.md Non-goals).
var tracingHandlerFactory func() Handler

func lookupTracingHandler() Handler {
	if tracingHandlerFactory == nil {
		return nil
	}
	return tracingHandlerFactory()
}

func (cm *CallbackManager) runManagerFor(runID uuid.UUID) *RunManager {
	return &RunManager{
		RunID:               runID,
		ParentRunID:         cm.parentRunID,
		Handlers:            cm.handlers,
		InheritableHandlers: cm.inheritableHandlers,
		Tags:                cm.tags,
		InheritableTags:     cm.inheritableTags,
		Metadata:            cm.metadata,
		InheritableMetadata: cm.inheritableMetadata,
	}
}

func newRunID(supplied *uuid.UUID) uuid.UUID {
	if supplied != nil {
		return *supplied
	}
	return uuid.New()
}

// OnChatModelStart fires on_chat_model_start once per message list,
// returning one LLMRunManager per list (spec.md §4.2, §4.6 step 3).
// Only the first manager may reuse a caller-supplied run id; every
// subsequent one always gets a fresh id.
func (cm *CallbackManager) OnChatModelStart(serialized map[string]any, messageLists [][]schema.Message, runID *uuid.UUID) []LLMRunManager {
	out := make([]LLMRunManager, 0, len(messageLists))
	for i, messages := range messageLists {
		var id uuid.UUID
		if i == 0 {
			id = newRunID(runID)
		} else {
			id = uuid.New()
		}
		handleEvent(cm.handlers, eventChatModel, func(h Handler) {
			h.OnChatModelStart(serialized, [][]schema.Message{messages}, id, cm.parentRunID, cm.tags, cm.metadata)
		})
		out = append(out, LLMRunManager{cm.runManagerFor(id)})
	}
	return out
}

// OnLLMStart fires on_llm_start once per prompt (spec.md §4.2).
func (cm *CallbackManager) OnLLMStart(serialized map[string]any, prompts []string, runID *uuid.UUID) []LLMRunManager {
	out := make([]LLMRunManager, 0, len(prompts))
	for i, prompt := range prompts {
		var id uuid.UUID
		if i == 0 {
			id = newRunID(runID)
		} else {
			id = uuid.New()
		}
		handleEvent(cm.handlers, eventLLM, func(h Handler) {
			h.OnLLMStart(serialized, []string{prompt}, id, cm.parentRunID, cm.tags, cm.metadata)
		})
		out = append(out, LLMRunManager{cm.runManagerFor(id)})
	}
	return out
}

// OnChainStart fires on_chain_start and returns the run's ChainRunManager.
func (cm *CallbackManager) OnChainStart(serialized map[string]any, inputs any, runID *uuid.UUID, name string) ChainRunManager {
	id := newRunID(runID)
	handleEvent(cm.handlers, eventChain, func(h Handler) {
		h.OnChainStart(serialized, inputs, id, cm.parentRunID, cm.tags, cm.metadata, name)
	})
	return ChainRunManager{cm.runManagerFor(id)}
}

// OnToolStart fires on_tool_start and returns the run's ToolRunManager.
func (cm *CallbackManager) OnToolStart(serialized map[string]any, inputStr string, runID *uuid.UUID, inputs map[string]any) ToolRunManager {
	id := newRunID(runID)
	handleEvent(cm.handlers, eventAlways, func(h Handler) {
		h.OnToolStart(serialized, inputStr, id, cm.parentRunID, cm.tags, cm.metadata, inputs)
	})
	return ToolRunManager{cm.runManagerFor(id)}
}

// OnRetrieverStart fires on_retriever_start and returns the run's RetrieverRunManager.
func (cm *CallbackManager) OnRetrieverStart(serialized map[string]any, query string, runID *uuid.UUID) RetrieverRunManager {
	id := newRunID(runID)
	handleEvent(cm.handlers, eventRetriever, func(h Handler) {
		h.OnRetrieverStart(serialized, query, id, cm.parentRunID, cm.tags, cm.metadata)
	})
	return RetrieverRunManager{cm.runManagerFor(id)}
}

// DispatchCustomEvent requires a parent run (spec.md §4.2) — it is
// meant to be called from inside an already-started run, not at the
// top of a call tree, and fails distinctly from a handler error when
// that invariant is violated.
func DispatchCustomEvent(cm *CallbackManager, name string, data any) error {
	if cm == nil || cm.parentRunID == nil {
		return llmerrors.NewContractError("dispatch_custom_event requires a parent run")
	}
	handleEvent(cm.handlers, eventCustom, func(h Handler) {
		h.OnCustomEvent(name, data, *cm.parentRunID, cm.tags, cm.metadata)
	})
	return nil
}

func (cm *CallbackManager) String() string {
	return fmt.Sprintf("CallbackManager(handlers=%d, tags=%v)", len(cm.handlers), cm.tags)
}
