package callbacks

import (
	"context"
	"log/slog"
	"sync"
)

// eventKind identifies which Ignore* flag (if any) gates an event, so
// dispatch can filter a handler list once instead of repeating the
// switch at every call site.
type eventKind int

const (
	eventLLM eventKind = iota
	eventChatModel
	eventChain
	eventAgent
	eventRetriever
	eventRetry
	eventCustom
	eventAlways
)

func ignored(h Handler, kind eventKind) bool {
	switch kind {
	case eventLLM:
		return h.IgnoreLLM()
	case eventChatModel:
		return h.IgnoreChatModel()
	case eventChain:
		return h.IgnoreChain()
	case eventAgent:
		return h.IgnoreAgent()
	case eventRetriever:
		return h.IgnoreRetriever()
	case eventRetry:
		return h.IgnoreRetry()
	case eventCustom:
		return h.IgnoreCustomEvent()
	default:
		return false
	}
}

// handleEvent runs fn against every handler not filtered out by kind,
// synchronously and in order. A panic from a handler with RaiseError()
// propagates immediately and aborts the callback sequence; any other
// handler's failure is caught and logged, and the remaining handlers
// still run (spec.md §4.1).
func handleEvent(handlers []Handler, kind eventKind, fn func(Handler)) {
	for _, h := range handlers {
		if ignored(h, kind) {
			continue
		}
		if raised := runGuarded(h, fn); raised != nil {
			panic(raised)
		}
	}
}

func runGuarded(h Handler, fn func(Handler)) (raised any) {
	defer func() {
		if r := recover(); r != nil {
			if h.RaiseError() {
				raised = r
				return
			}
			slog.Error("callback handler panicked", "handler", h.Name(), "recover", r)
		}
	}()
	fn(h)
	return nil
}

// ahandleEvent mirrors handleEvent's ordering guarantee under
// concurrency: every RunInline handler is awaited strictly in order
// first, then every remaining handler runs concurrently and the call
// waits for all of them (spec.md §4.1). The ignore predicate applies
// uniformly to both groups — a handler that opts out of an event
// category never runs inline or concurrently for it.
func ahandleEvent(ctx context.Context, handlers []Handler, kind eventKind, fn func(context.Context, Handler)) {
	var inline, concurrent []Handler
	for _, h := range handlers {
		if ignored(h, kind) {
			continue
		}
		if h.RunInline() {
			inline = append(inline, h)
		} else {
			concurrent = append(concurrent, h)
		}
	}

	for _, h := range inline {
		runGuardedCtx(ctx, h, fn)
	}

	if len(concurrent) == 0 {
		return
	}
	var wg sync.WaitGroup
	wg.Add(len(concurrent))
	for _, h := range concurrent {
		h := h
		go func() {
			defer wg.Done()
			runGuardedCtx(ctx, h, fn)
		}()
	}
	wg.Wait()
}

func runGuardedCtx(ctx context.Context, h Handler, fn func(context.Context, Handler)) {
	defer func() {
		if r := recover(); r != nil {
			if h.RaiseError() {
				panic(r)
			}
			slog.Error("callback handler panicked", "handler", h.Name(), "recover", r)
		}
	}()
	fn(ctx, h)
}
