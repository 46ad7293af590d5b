// Package runnable implements the composable invocation abstraction
// every chat model, parser, and pipeline stage in this module is built
// from: single-call, batch, and streaming execution, composed through
// Sequence/Parallel/Each/Binding/Retry/Fallback/Lambda/Generator
// (spec.md §4.3-4.4).
package runnable

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/runloom/core/callbacks"
)

// Config carries the per-call options every public entry point
// threads through call_with_config (spec.md §4.3 "Config
// propagation"). The zero value is a valid, empty config.
type Config struct {
	RunName  string
	RunID    *uuid.UUID
	Tags     []string
	Metadata map[string]any

	Callbacks []callbacks.Handler
	manager   *callbacks.CallbackManager
	Verbose   bool
	Debug     bool
	Tracing   bool

	MaxConcurrency int
}

// Merge combines base and override per spec.md §4.3: scalars are
// right-biased (override wins when set), tags are additive-with-dedup,
// metadata is map-union (override wins on key conflict), and callbacks
// concatenate (override's manager, if any, takes precedence as the
// inheritable seed).
func Merge(base, override Config) Config {
	out := base
	if override.RunName != "" {
		out.RunName = override.RunName
	}
	if override.RunID != nil {
		out.RunID = override.RunID
	}
	out.Tags = dedupStrings(append(append([]string(nil), base.Tags...), override.Tags...))
	out.Metadata = mapUnion(base.Metadata, override.Metadata)
	out.Callbacks = append(append([]callbacks.Handler(nil), base.Callbacks...), override.Callbacks...)
	if override.manager != nil {
		out.manager = override.manager
	}
	if override.Verbose {
		out.Verbose = true
	}
	if override.Debug {
		out.Debug = true
	}
	if override.Tracing {
		out.Tracing = true
	}
	if override.MaxConcurrency != 0 {
		out.MaxConcurrency = override.MaxConcurrency
	}
	return out
}

func dedupStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func mapUnion(base, override map[string]any) map[string]any {
	if len(base) == 0 && len(override) == 0 {
		return nil
	}
	out := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

// currentConfigKey is the context key call_with_config stashes the
// active manager-bearing config under for the duration of a call, the
// Go analogue of the original's thread/task-local "current config"
// (spec.md §4.3 step e).
type currentConfigKey struct{}

var currentConfigCtxKey = currentConfigKey{}

// contextWithConfig returns a context carrying cfg as the current
// config; FromContext retrieves it. Nesting follows ordinary context
// parent/child scoping, which gives the LIFO behavior the spec asks
// for: an inner call_with_config's context is discarded when that call
// returns, restoring the caller's.
func contextWithConfig(ctx context.Context, cfg Config) context.Context {
	return context.WithValue(ctx, currentConfigCtxKey, cfg)
}

// FromContext returns the nearest enclosing config, or the zero Config
// if none was ever set.
func FromContext(ctx context.Context) Config {
	if cfg, ok := ctx.Value(currentConfigCtxKey).(Config); ok {
		return cfg
	}
	return Config{}
}

// Manager returns the callback manager a parent run attached via
// get_child, if any.
func (c Config) Manager() *callbacks.CallbackManager { return c.manager }

// WithManager returns a copy of c carrying m as the active manager.
func (c Config) WithManager(m *callbacks.CallbackManager) Config {
	c.manager = m
	return c
}

// CallWithConfig implements spec.md §4.3's call_with_config: it
// ensures a manager exists (reusing the parent-linked one a wrapping
// run attached via get_child), fires on_chain_start/on_chain_end (or
// on_chain_error), derives a child config for nested runnables via
// get_child, and scopes that child config onto ctx for the duration of
// body.
func CallWithConfig(ctx context.Context, cfg Config, name string, input any, body func(ctx context.Context, childCfg Config, rm callbacks.ChainRunManager) (any, error)) (any, error) {
	cm := callbacks.Configure(ctx, callbacks.ConfigureOptions{
		InheritableManager:   cfg.manager,
		InheritableCallbacks: cfg.Callbacks,
		Verbose:              cfg.Verbose,
		Debug:                cfg.Debug,
		Tracing:              cfg.Tracing,
		InheritableTags:      cfg.Tags,
		InheritableMetadata:  cfg.Metadata,
	})
	rm := cm.OnChainStart(map[string]any{"name": name}, input, cfg.RunID, name)

	child := cfg
	child.manager = rm.GetChild("")
	childCtx := contextWithConfig(ctx, child)

	out, err := body(childCtx, child, rm)
	if err != nil {
		rm.OnError(err)
		return nil, err
	}
	rm.OnEnd(out)
	return out, nil
}

// runLocal is a small helper goroutine-pool used by batch/parallel
// execution, bounding concurrency to Config.MaxConcurrency (0 means
// unbounded). A single item runs on the caller's goroutine — no worker
// is spawned (spec.md §8 "Single-element batch does not spawn a worker
// thread").
func runLocal(n int, maxConcurrency int, fn func(i int)) {
	if n == 0 {
		return
	}
	if n == 1 {
		fn(0)
		return
	}
	if maxConcurrency <= 0 || maxConcurrency >= n {
		var wg sync.WaitGroup
		wg.Add(n)
		for i := 0; i < n; i++ {
			i := i
			go func() {
				defer wg.Done()
				fn(i)
			}()
		}
		wg.Wait()
		return
	}

	sem := make(chan struct{}, maxConcurrency)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		sem <- struct{}{}
		go func() {
			defer func() { <-sem; wg.Done() }()
			fn(i)
		}()
	}
	wg.Wait()
}
