package runnable

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func upper() Func[string, string] {
	return Func[string, string]{Name: "upper", Fn: func(_ context.Context, s string, _ Config) (string, error) {
		return strings.ToUpper(s), nil
	}}
}

func exclaim() Func[string, string] {
	return Func[string, string]{Name: "exclaim", Fn: func(_ context.Context, s string, _ Config) (string, error) {
		return s + "!", nil
	}}
}

func TestSequencePipesOutputToInput(t *testing.T) {
	seq := Pipe[string, string, string](upper(), exclaim())
	out, err := seq.Invoke(context.Background(), "hello", Config{})
	require.NoError(t, err)
	assert.Equal(t, "HELLO!", out)
}

func TestParallelRunsBranchesConcurrently(t *testing.T) {
	p := Parallel[string]{Branches: map[string]Branch[string]{
		"upper": FromRunnable[string, string](upper()),
		"loud":  FromRunnable[string, string](exclaim()),
	}}
	out, err := p.Invoke(context.Background(), "hi", Config{})
	require.NoError(t, err)
	assert.Equal(t, "HI", out["upper"])
	assert.Equal(t, "hi!", out["loud"])
}

func TestRetryStopsOnFirstSuccess(t *testing.T) {
	attempts := 0
	flaky := Func[string, string]{Fn: func(_ context.Context, s string, _ Config) (string, error) {
		attempts++
		if attempts < 3 {
			return "", errors.New("transient")
		}
		return s, nil
	}}
	r := Retry[string, string]{Bound: flaky, MaxAttempts: 5}
	out, err := r.Invoke(context.Background(), "ok", Config{})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 3, attempts)
}

func TestFallbackTriesEachInOrder(t *testing.T) {
	failing := Func[string, string]{Fn: func(_ context.Context, _ string, _ Config) (string, error) {
		return "", errors.New("down")
	}}
	f := Fallback[string, string]{Primary: failing, Alternatives: []Runnable[string, string]{upper()}}
	out, err := f.Invoke(context.Background(), "ok", Config{})
	require.NoError(t, err)
	assert.Equal(t, "OK", out)
}

func TestFallbackSurfacesLastErrorWhenAllFail(t *testing.T) {
	boom := func(msg string) Func[string, string] {
		return Func[string, string]{Fn: func(_ context.Context, _ string, _ Config) (string, error) {
			return "", errors.New(msg)
		}}
	}
	f := Fallback[string, string]{Primary: boom("first"), Alternatives: []Runnable[string, string]{boom("last")}}
	_, err := f.Invoke(context.Background(), "x", Config{})
	require.Error(t, err)
	assert.Equal(t, "last", err.Error())
}

func TestBatchReturnsFirstErrorWhenNotReturningExceptions(t *testing.T) {
	r := Func[string, string]{Fn: func(_ context.Context, s string, _ Config) (string, error) {
		if s == "bad" {
			return "", errors.New("boom")
		}
		return s, nil
	}}
	_, err := r.Batch(context.Background(), []string{"ok", "bad"}, Config{}, false)
	require.Error(t, err)
}

func TestConfigMergeIsAdditiveForTagsAndRightBiasedForScalars(t *testing.T) {
	base := Config{RunName: "base", Tags: []string{"a", "b"}}
	override := Config{RunName: "override", Tags: []string{"b", "c"}}
	merged := Merge(base, override)
	assert.Equal(t, "override", merged.RunName)
	assert.Equal(t, []string{"a", "b", "c"}, merged.Tags)
}
