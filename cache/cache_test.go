package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runloom/core/schema"
)

func TestInMemoryCacheRoundTrips(t *testing.T) {
	c := NewInMemoryCache()
	ctx := context.Background()
	key := Key{PromptKey: "p", LLMString: "l"}

	_, ok, err := c.Lookup(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Update(ctx, key, []schema.Generation{{Text: "hi"}}))
	gens, ok, err := c.Lookup(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hi", gens[0].Text)
}

func TestLLMStringForIsKeyOrderIndependent(t *testing.T) {
	a, err := LLMStringFor(map[string]any{"temperature": 0.0, "model": "x"})
	require.NoError(t, err)
	b, err := LLMStringFor(map[string]any{"model": "x", "temperature": 0.0})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
