package callbacks

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

// orderProbe tracks the async dispatch ordering: every inline handler
// must finish before any concurrent one observes the event.
type orderProbe struct {
	NopHandler
	name        string
	inline      bool
	inlineDone  *atomic.Int32
	sawInline   *atomic.Bool
	invocations *atomic.Int32
}

func (p *orderProbe) Name() string    { return p.name }
func (p *orderProbe) RunInline() bool { return p.inline }

func (p *orderProbe) observe() {
	p.invocations.Add(1)
	if p.inline {
		p.inlineDone.Add(1)
		return
	}
	if p.inlineDone.Load() < 2 {
		p.sawInline.Store(false)
	}
}

func TestAsyncDispatchInlineHandlersCompleteFirst(t *testing.T) {
	var inlineDone atomic.Int32
	var invocations atomic.Int32
	var sawInline atomic.Bool
	sawInline.Store(true)

	mk := func(name string, inline bool) Handler {
		return &orderProbe{name: name, inline: inline, inlineDone: &inlineDone, sawInline: &sawInline, invocations: &invocations}
	}
	handlers := []Handler{
		mk("inline-1", true),
		mk("concurrent-1", false),
		mk("inline-2", true),
		mk("concurrent-2", false),
	}

	ahandleEvent(context.Background(), handlers, eventChain, func(_ context.Context, h Handler) {
		h.(*orderProbe).observe()
	})

	assert.Equal(t, int32(4), invocations.Load())
	assert.True(t, sawInline.Load(), "a concurrent handler ran before all inline handlers completed")
}

type ignoringHandler struct {
	NopHandler
	called atomic.Bool
}

func (h *ignoringHandler) Name() string      { return "ignoring" }
func (h *ignoringHandler) RunInline() bool   { return true }
func (h *ignoringHandler) IgnoreChain() bool { return true }
func (h *ignoringHandler) IgnoreLLM() bool   { return false }

func TestIgnorePredicateAppliesUniformlyToInlineHandlers(t *testing.T) {
	h := &ignoringHandler{}
	ahandleEvent(context.Background(), []Handler{h}, eventChain, func(_ context.Context, handler Handler) {
		handler.(*ignoringHandler).called.Store(true)
	})
	assert.False(t, h.called.Load(), "ignore predicate must gate inline handlers too")

	ahandleEvent(context.Background(), []Handler{h}, eventLLM, func(_ context.Context, handler Handler) {
		handler.(*ignoringHandler).called.Store(true)
	})
	assert.True(t, h.called.Load())
}

func TestAsyncDispatchJoinsConcurrentHandlers(t *testing.T) {
	var wg sync.WaitGroup
	var done atomic.Int32
	wg.Add(1)

	blocker := &funcHandler{name: "blocker", fn: func() {
		wg.Wait()
		done.Add(1)
	}}
	go func() { wg.Done() }()

	ahandleEvent(context.Background(), []Handler{blocker}, eventChain, func(_ context.Context, h Handler) {
		h.(*funcHandler).fn()
	})
	assert.Equal(t, int32(1), done.Load(), "ahandleEvent must join non-inline handlers before returning")
}

type funcHandler struct {
	NopHandler
	name string
	fn   func()
}

func (h *funcHandler) Name() string { return h.name }
