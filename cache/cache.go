// Package cache implements the BaseCache capability (spec.md §3.6,
// §6.11): a canonical-JSON keyed lookup from a (prompt, invocation
// params) pair to a list of cached Generations.
package cache

import (
	"context"
	"sort"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"github.com/runloom/core/schema"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Key identifies one cache entry (spec.md §3.6): PromptKey is a
// canonical-JSON serialization of the input messages, LLMString a
// canonical serialization of the invocation parameters.
type Key struct {
	PromptKey string
	LLMString string
}

// BaseCache is the capability interface a cache backend implements.
// Implementations must be safe for concurrent Lookup/Update (spec.md
// §5 "The global cache, if configured, is behind the BaseCache
// capability; concurrent lookup/update must be safe").
type BaseCache interface {
	Lookup(ctx context.Context, key Key) ([]schema.Generation, bool, error)
	Update(ctx context.Context, key Key, generations []schema.Generation) error
	Clear(ctx context.Context) error
}

// InMemoryCache is a process-local BaseCache backed by a mutex-guarded
// map. It is only used where a caller installs it, as a model's Cache
// or GlobalCache; requesting caching with neither set is an error.
type InMemoryCache struct {
	mu      sync.RWMutex
	entries map[Key][]schema.Generation
}

// NewInMemoryCache builds an empty InMemoryCache.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{entries: make(map[Key][]schema.Generation)}
}

func (c *InMemoryCache) Lookup(_ context.Context, key Key) ([]schema.Generation, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	gens, ok := c.entries[key]
	return gens, ok, nil
}

func (c *InMemoryCache) Update(_ context.Context, key Key, generations []schema.Generation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = generations
	return nil
}

func (c *InMemoryCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[Key][]schema.Generation)
	return nil
}

// PromptKeyFor canonically serializes a message list for use as a
// Key.PromptKey: jsoniter's standard-library compatible encoder writes
// map keys in sorted order, so the same conversation always hashes
// identically regardless of construction order.
func PromptKeyFor(messages []schema.Message) (string, error) {
	serializable := make([]map[string]any, len(messages))
	for i, m := range messages {
		base := m.Base()
		serializable[i] = map[string]any{
			"role":    string(base.Role),
			"content": base.Content.String(),
			"id":      base.ID,
		}
	}
	raw, err := jsonAPI.Marshal(serializable)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// LLMStringFor canonically serializes invocation params: keys sorted,
// so that {"temperature":0,"model":"x"} and {"model":"x","temperature":0}
// produce the same LLMString (spec.md §3.6).
func LLMStringFor(params map[string]any) (string, error) {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make([]any, 0, len(keys)*2)
	for _, k := range keys {
		ordered = append(ordered, k, params[k])
	}
	raw, err := jsonAPI.Marshal(ordered)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
