package runnable

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runloom/core/callbacks"
)

func TestDefaultTransformAccumulatesLastInput(t *testing.T) {
	in := make(chan StreamItem[string], 3)
	in <- StreamItem[string]{Value: "a"}
	in <- StreamItem[string]{Value: "b"}
	in <- StreamItem[string]{Value: "final"}
	close(in)

	out, err := DefaultTransform[string, string](context.Background(), upper(), in, Config{})
	require.NoError(t, err)
	values, err := Collect(out)
	require.NoError(t, err)
	assert.Equal(t, []string{"FINAL"}, values)
}

func TestSequenceStreamFeedsGeneratorIncrementally(t *testing.T) {
	// A generator source that emits three words, piped into a
	// generator stage that annotates each as it arrives: the stage
	// must see all three, not just the last.
	source := Generator[string, string]{
		Fn: func(_ context.Context, in <-chan string, _ Config) (<-chan string, error) {
			out := make(chan string, 3)
			go func() {
				defer close(out)
				for range in {
					for _, w := range []string{"one", "two", "three"} {
						out <- w
					}
				}
			}()
			return out, nil
		},
		Add: func(a, b string) string { return a + b },
	}
	stage := Generator[string, string]{
		Fn: func(_ context.Context, in <-chan string, _ Config) (<-chan string, error) {
			out := make(chan string, 3)
			go func() {
				defer close(out)
				for w := range in {
					out <- strings.ToUpper(w)
				}
			}()
			return out, nil
		},
		Add: func(a, b string) string { return a + b },
	}

	seq := Pipe[string, string, string](source, stage)
	ch, err := seq.Stream(context.Background(), "go", Config{})
	require.NoError(t, err)
	values, err := Collect(ch)
	require.NoError(t, err)
	assert.Equal(t, []string{"ONE", "TWO", "THREE"}, values)
}

func TestBatchAsCompletedYieldsAllIndexedResults(t *testing.T) {
	r := Func[int, int]{Fn: func(_ context.Context, n int, _ Config) (int, error) {
		return n * 2, nil
	}}
	results := BatchAsCompleted[int, int](context.Background(), r, []int{1, 2, 3, 4}, Config{MaxConcurrency: 2})

	byIndex := map[int]int{}
	for res := range results {
		require.NoError(t, res.Err)
		byIndex[res.Index] = res.Value
	}
	assert.Equal(t, map[int]int{0: 2, 1: 4, 2: 6, 3: 8}, byIndex)
}

// chainRecorder captures chain events with their tags for the
// composite-runnable scenarios.
type chainRecorder struct {
	callbacks.NopHandler
	mu      sync.Mutex
	events  []string
	tags    [][]string
	runIDs  []uuid.UUID
	parents []*uuid.UUID
}

func (h *chainRecorder) Name() string { return "chainRecorder" }

func (h *chainRecorder) OnChainStart(_ map[string]any, _ any, runID uuid.UUID, parent *uuid.UUID, tags []string, _ map[string]any, _ string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, "start")
	h.tags = append(h.tags, append([]string(nil), tags...))
	h.runIDs = append(h.runIDs, runID)
	h.parents = append(h.parents, parent)
}

func (h *chainRecorder) OnChainEnd(_ any, runID uuid.UUID, parent *uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, "end")
	h.tags = append(h.tags, nil)
	h.runIDs = append(h.runIDs, runID)
	h.parents = append(h.parents, parent)
}

func (h *chainRecorder) OnChainError(_ error, runID uuid.UUID, parent *uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, "error")
	h.tags = append(h.tags, nil)
	h.runIDs = append(h.runIDs, runID)
	h.parents = append(h.parents, parent)
}

func TestSequenceErrorFiresChainErrorAndSkipsSecondStep(t *testing.T) {
	recorder := &chainRecorder{}
	boom := Func[string, string]{Name: "boom", Fn: func(_ context.Context, _ string, _ Config) (string, error) {
		return "", errors.New("step one failed")
	}}
	var bInvoked bool
	b := Func[string, string]{Name: "after", Fn: func(_ context.Context, s string, _ Config) (string, error) {
		bInvoked = true
		return s, nil
	}}

	seq := Pipe[string, string, string](boom, b)
	_, err := seq.Invoke(context.Background(), "x", Config{Callbacks: []callbacks.Handler{recorder}})
	require.Error(t, err)
	assert.False(t, bInvoked)

	// Sequence start, step-1 start, step-1 error, sequence error.
	assert.Equal(t, []string{"start", "start", "error", "error"}, recorder.events)
	// The inner error belongs to the step run, the outer to the sequence run.
	assert.Equal(t, recorder.runIDs[1], recorder.runIDs[2])
	assert.Equal(t, recorder.runIDs[0], recorder.runIDs[3])
	// The step run is a child of the sequence run, tagged seq:step:1.
	require.NotNil(t, recorder.parents[1])
	assert.Equal(t, recorder.runIDs[0], *recorder.parents[1])
	assert.Contains(t, recorder.tags[1], "seq:step:1")
}

func TestParallelBranchesShareParentWithMapKeyTags(t *testing.T) {
	recorder := &chainRecorder{}
	double := Func[int, int]{Name: "double", Fn: func(_ context.Context, n int, _ Config) (int, error) { return 2 * n, nil }}
	triple := Func[int, int]{Name: "triple", Fn: func(_ context.Context, n int, _ Config) (int, error) { return 3 * n, nil }}

	p := Parallel[int]{Branches: map[string]Branch[int]{
		"double": FromRunnable[int, int](double),
		"triple": FromRunnable[int, int](triple),
	}}
	out, err := p.Invoke(context.Background(), 5, Config{Callbacks: []callbacks.Handler{recorder}})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"double": 10, "triple": 15}, out)

	recorder.mu.Lock()
	defer recorder.mu.Unlock()

	parentRunID := recorder.runIDs[0]
	var branchTags []string
	branchRunIDs := map[uuid.UUID]bool{}
	for i, event := range recorder.events {
		if event != "start" || recorder.runIDs[i] == parentRunID {
			continue
		}
		require.NotNil(t, recorder.parents[i])
		assert.Equal(t, parentRunID, *recorder.parents[i])
		branchRunIDs[recorder.runIDs[i]] = true
		for _, tag := range recorder.tags[i] {
			if strings.HasPrefix(tag, "map:key:") {
				branchTags = append(branchTags, tag)
			}
		}
	}
	sort.Strings(branchTags)
	assert.Equal(t, []string{"map:key:double", "map:key:triple"}, branchTags)
	assert.Len(t, branchRunIDs, 2, "branches must have distinct run ids")
}

func TestEmptyBatchReturnsEmptyWithoutCallbacks(t *testing.T) {
	recorder := &chainRecorder{}
	r := upper()
	results, err := r.Batch(context.Background(), nil, Config{Callbacks: []callbacks.Handler{recorder}}, false)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, recorder.events)
}
