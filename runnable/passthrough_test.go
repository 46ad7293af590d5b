package runnable

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPickSelectsOnlyRequestedKeys(t *testing.T) {
	out, err := Pick("a", "c").Invoke(context.Background(), map[string]any{"a": 1, "b": 2}, Config{})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1}, out)
}

func TestAssignMergesBranchResultsIntoInput(t *testing.T) {
	double := Func[map[string]any, int]{Fn: func(_ context.Context, in map[string]any, _ Config) (int, error) {
		return in["n"].(int) * 2, nil
	}}
	assign := Assign(map[string]Branch[map[string]any]{
		"doubled": FromRunnable[map[string]any, int](double),
	})
	out, err := assign.Invoke(context.Background(), map[string]any{"n": 21}, Config{})
	require.NoError(t, err)
	assert.Equal(t, 21, out["n"])
	assert.Equal(t, 42, out["doubled"])
}

func TestMapAppliesRunnableElementWise(t *testing.T) {
	out, err := Map[string, string](upper()).Invoke(context.Background(), []string{"a", "b"}, Config{})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, out)
}

func TestPassthroughIsIdentity(t *testing.T) {
	out, err := Passthrough[int]{}.Invoke(context.Background(), 7, Config{})
	require.NoError(t, err)
	assert.Equal(t, 7, out)
}
