// Package chatmodel implements the ChatModel generation pipeline
// (spec.md §4.6): cache lookup/update, rate limiting, the
// stream-vs-batch decision, streaming aggregation, and structured
// output wiring on top of a provider Adapter.
package chatmodel

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/runloom/core/cache"
	"github.com/runloom/core/callbacks"
	"github.com/runloom/core/llmerrors"
	"github.com/runloom/core/ratelimit"
	"github.com/runloom/core/schema"
	"github.com/runloom/core/streaming"
)

// DisableStreaming controls the streaming policy a ChatModel honors
// (spec.md §4.6 step 4): StreamingAllowed disables nothing,
// StreamingDisabled forbids streaming unconditionally, and
// StreamingDisabledForToolCalling disables streaming only when tools
// are bound.
type DisableStreaming int

const (
	StreamingAllowed DisableStreaming = iota
	StreamingDisabled
	StreamingDisabledForToolCalling
)

// Adapter is what a provider implements (spec.md §4.9): plain
// generate/stream plus the sync/async axis folded into one
// context.Context-based call. bind_tools/with_structured_output are
// modeled as wrapping constructors rather than adapter methods, so a
// concrete Adapter stays a flat struct of provider config.
type Adapter interface {
	IdentifyingParams() map[string]any
	ProviderName() string
	ModelName() string

	Generate(ctx context.Context, messages []schema.Message, stop []string) (schema.ChatResult, error)

	// Stream may return llmerrors.ErrNotImplemented when the adapter has
	// no streaming transport; ChatModel falls back to Generate.
	Stream(ctx context.Context, messages []schema.Message, stop []string) (<-chan schema.AIMessageChunk, error)
}

// Model is the generation pipeline wrapping an Adapter, per spec.md
// §4.6. The zero value is unusable; build with New.
type Model struct {
	Adapter Adapter

	Cache          cache.BaseCache
	CacheRequested *bool // nil = implicit global; true/false = explicit
	GlobalCache    cache.BaseCache

	RateLimiter ratelimit.BaseRateLimiter

	DisableStreaming DisableStreaming
	StreamingFlag    bool // explicit `streaming: true` on the model
	ToolsBound       bool

	OutputVersion string // "" or "v1"
}

// New builds a Model wrapping adapter with sane defaults (no cache, no
// rate limiter, streaming allowed).
func New(adapter Adapter) *Model {
	return &Model{Adapter: adapter, OutputVersion: "v1"}
}

func boolPtr(b bool) *bool { return &b }

// WithCache sets an explicit per-instance cache (spec.md §4.6 step 1
// "explicit instance").
func (m *Model) WithCache(c cache.BaseCache) *Model {
	m.Cache = c
	m.CacheRequested = boolPtr(true)
	return m
}

// WithCacheDisabled explicitly disables caching for this model.
func (m *Model) WithCacheDisabled() *Model {
	m.CacheRequested = boolPtr(false)
	return m
}

// WithCacheRequired requests caching without supplying an instance:
// resolveCache requires a global cache to exist, else raises
// ConfigurationError (SPEC_FULL.md's resolved Open Question: stricter
// behavior everywhere).
func (m *Model) WithCacheRequired() *Model {
	m.CacheRequested = boolPtr(true)
	return m
}

// resolveCache implements spec.md §4.6 _generate_with_cache step 1.
func (m *Model) resolveCache() (cache.BaseCache, error) {
	if m.Cache != nil {
		return m.Cache, nil
	}
	if m.CacheRequested != nil {
		if !*m.CacheRequested {
			return nil, nil
		}
		if m.GlobalCache == nil {
			return nil, llmerrors.NewConfigurationError("cache requested but no cache instance and no global cache configured")
		}
		return m.GlobalCache, nil
	}
	return m.GlobalCache, nil
}

func (m *Model) identifyingParamsWithStop(stop []string) map[string]any {
	params := map[string]any{}
	for k, v := range m.Adapter.IdentifyingParams() {
		params[k] = v
	}
	if len(stop) > 0 {
		params["stop"] = stop
	}
	return params
}

// langsmithMetadata implements spec.md §4.6 step 2: ls_provider,
// ls_model_name, ls_model_type identifiers injected into inheritable
// metadata.
func (m *Model) langsmithMetadata() map[string]any {
	return map[string]any{
		"ls_provider":   m.Adapter.ProviderName(),
		"ls_model_name": m.Adapter.ModelName(),
		"ls_model_type": "chat",
	}
}

// Generate orchestrates a batch of message lists (spec.md §4.6): one
// on_chat_model_start run manager per list, _generate_with_cache per
// list concurrently, combined into an LLMResult.
func (m *Model) Generate(ctx context.Context, messageLists [][]schema.Message, cfg callbacks.ConfigureOptions, stop []string) (schema.LLMResult, error) {
	cfg.InheritableMetadata = mergeMaps(cfg.InheritableMetadata, m.langsmithMetadata())
	cm := callbacks.Configure(ctx, cfg)

	serialized := map[string]any{"params": sanitizeIdentifyingParams(m.identifyingParamsWithStop(stop))}
	runManagers := cm.OnChatModelStart(serialized, toMessageSlices(messageLists), nil)

	results := make([]schema.ChatResult, len(messageLists))
	errs := make([]error, len(messageLists))

	var wg sync.WaitGroup
	wg.Add(len(messageLists))
	for i := range messageLists {
		i := i
		go func() {
			defer wg.Done()
			res, err := m.generateWithCache(ctx, messageLists[i], stop, runManagers[i])
			if err != nil {
				errs[i] = err
				runManagers[i].OnError(err)
				return
			}
			results[i] = res
			runManagers[i].OnEnd(schema.LLMResult{Generations: [][]schema.ChatGeneration{res.Generations}})
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return schema.LLMResult{}, err
		}
	}

	out := schema.LLMResult{Generations: make([][]schema.ChatGeneration, len(results))}
	for i, r := range results {
		out.Generations[i] = r.Generations
	}
	out.LLMOutput = combineLLMOutputs(results)
	return out, nil
}

func combineLLMOutputs(results []schema.ChatResult) map[string]any {
	var totalUsage *schema.UsageMetadata
	for _, r := range results {
		for _, gen := range r.Generations {
			totalUsage = schema.AddUsage(totalUsage, gen.Message.UsageMetadata)
		}
	}
	if totalUsage == nil {
		return nil
	}
	return map[string]any{"usage": totalUsage}
}

func toMessageSlices(lists [][]schema.Message) [][]schema.Message { return lists }

func mergeMaps(base, extra map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// generateWithCache implements _generate_with_cache (spec.md §4.6).
func (m *Model) generateWithCache(ctx context.Context, messages []schema.Message, stop []string, rm callbacks.LLMRunManager) (schema.ChatResult, error) {
	c, err := m.resolveCache()
	if err != nil {
		return schema.ChatResult{}, err
	}

	var key cache.Key
	if c != nil {
		promptKey, err := cache.PromptKeyFor(messages)
		if err != nil {
			return schema.ChatResult{}, err
		}
		llmString, err := cache.LLMStringFor(m.identifyingParamsWithStop(stop))
		if err != nil {
			return schema.ChatResult{}, err
		}
		key = cache.Key{PromptKey: promptKey, LLMString: llmString}

		if gens, ok, err := c.Lookup(ctx, key); err != nil {
			return schema.ChatResult{}, err
		} else if ok {
			return chatResultFromGenerations(gens), nil
		}
	}

	if m.RateLimiter != nil {
		estimated := estimateTokens(messages)
		if err := m.RateLimiter.Acquire(ctx, estimated); err != nil {
			return schema.ChatResult{}, err
		}
	}

	var result schema.ChatResult
	if m.shouldStream(rm) {
		result, err = m.streamToResult(ctx, messages, stop, rm)
	} else {
		result, err = m.Adapter.Generate(ctx, messages, stop)
	}
	if err != nil {
		return schema.ChatResult{}, err
	}

	if c != nil {
		gens := generationsFromChatResult(result)
		if err := c.Update(ctx, key, gens); err != nil {
			return schema.ChatResult{}, err
		}
	}

	return result, nil
}

// shouldStream implements spec.md §4.6 step 4.
func (m *Model) shouldStream(rm callbacks.LLMRunManager) bool {
	if m.DisableStreaming == StreamingDisabled {
		return false
	}
	if m.DisableStreaming == StreamingDisabledForToolCalling && m.ToolsBound {
		return false
	}
	if m.StreamingFlag {
		return true
	}
	return len(rm.Handlers) > 0
}

func (m *Model) streamToResult(ctx context.Context, messages []schema.Message, stop []string, rm callbacks.LLMRunManager) (schema.ChatResult, error) {
	chunks, err := m.Adapter.Stream(ctx, messages, stop)
	if errors.Is(err, llmerrors.ErrNotImplemented) {
		return m.Adapter.Generate(ctx, messages, stop)
	}
	if err != nil {
		return schema.ChatResult{}, err
	}

	var acc schema.AIMessageChunk
	started := false
	for chunk := range chunks {
		if started {
			acc = streaming.Add(acc, chunk)
		} else {
			acc = chunk
			started = true
		}
		rm.OnNewToken(chunk.Text(), &chunk)
	}
	if !started {
		acc.ChunkPosition = schema.ChunkPositionLast
	}
	if acc.ChunkPosition != schema.ChunkPositionLast {
		acc.ChunkPosition = schema.ChunkPositionLast
		rm.OnNewToken("", nil)
	}
	final := streaming.Finalize(acc)

	return schema.ChatResult{Generations: []schema.ChatGeneration{{Message: final.ToMessage()}}}, nil
}

func chatResultFromGenerations(gens []schema.Generation) schema.ChatResult {
	out := schema.ChatResult{Generations: make([]schema.ChatGeneration, len(gens))}
	for i, g := range gens {
		out.Generations[i] = schema.ChatGeneration{
			Message:        schema.NewAIMessage(g.Text),
			GenerationInfo: g.GenerationInfo,
		}
	}
	return out
}

func generationsFromChatResult(result schema.ChatResult) []schema.Generation {
	out := make([]schema.Generation, len(result.Generations))
	for i, g := range result.Generations {
		out[i] = schema.Generation{Text: g.Message.Text(), GenerationInfo: g.GenerationInfo}
	}
	return out
}

// estimateTokens is a cheap char-count heuristic feeding the rate
// limiter, grounded on the same estimator shape used for the adaptive
// limiter in the example pack (character count / fixed ratio).
func estimateTokens(messages []schema.Message) int {
	chars := 0
	for _, msg := range messages {
		chars += len(msg.Text())
	}
	tokens := chars / 4
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}

// sanitizeIdentifyingParams strips values that aren't safe to persist
// verbatim in logs/tracing (API keys, raw client handles) from a
// model's identifying params, keeping only scalar configuration
// (spec.md §7, grounded on cleanup_llm_representation /
// format_for_tracing in original_source).
func sanitizeIdentifyingParams(params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch strings.ToLower(k) {
		case "api_key", "apikey", "authorization", "client":
			continue
		default:
			out[k] = params[k]
		}
	}
	return out
}

// GenerationFromError builds a degenerate ChatResult carrying an error
// message, used by callers that want a uniform ChatResult shape even
// on failure paths rather than branching on error vs result (spec.md
// §7, grounded on generate_response_from_error in original_source).
func GenerationFromError(err error) schema.ChatResult {
	return schema.ChatResult{
		Generations: []schema.ChatGeneration{{
			Message: schema.NewAIMessage(""),
			GenerationInfo: map[string]any{
				"error": err.Error(),
			},
		}},
	}
}

// NoopLLMRunManager exposes callbacks.NoopRunManager()'s LLM view for
// callers that need a manager without a configured handler set
// (spec.md §7).
func NoopLLMRunManager() callbacks.LLMRunManager {
	return callbacks.LLMRunManager{RunManager: callbacks.NoopRunManager()}
}
