package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddUsageNoneIsIdentity(t *testing.T) {
	u := NewUsageMetadata(10, 20)
	require.Equal(t, u, AddUsage(nil, u))
	require.Equal(t, u, AddUsage(u, nil))
}

func TestAddUsageCommutativeAssociative(t *testing.T) {
	a := NewUsageMetadata(10, 5)
	b := NewUsageMetadata(3, 7)
	c := NewUsageMetadata(1, 1)

	assert.Equal(t, AddUsage(a, b), AddUsage(b, a))
	assert.Equal(t, AddUsage(AddUsage(a, b), c), AddUsage(a, AddUsage(b, c)))
}

func TestAddUsageSumsDetails(t *testing.T) {
	a := &UsageMetadata{
		InputTokens:       10,
		OutputTokens:      5,
		TotalTokens:       15,
		InputTokenDetails: &TokenDetails{CacheRead: 2, Extra: map[string]int64{"x": 1}},
	}
	b := &UsageMetadata{
		InputTokens:       1,
		OutputTokens:      1,
		TotalTokens:       2,
		InputTokenDetails: &TokenDetails{CacheRead: 3, Extra: map[string]int64{"x": 4, "y": 5}},
	}
	sum := AddUsage(a, b)
	assert.EqualValues(t, 11, sum.InputTokens)
	assert.EqualValues(t, 5, sum.InputTokenDetails.CacheRead)
	assert.EqualValues(t, 5, sum.InputTokenDetails.Extra["x"])
	assert.EqualValues(t, 5, sum.InputTokenDetails.Extra["y"])
}

func TestSubtractUsageFlooredAtZero(t *testing.T) {
	u := NewUsageMetadata(10, 20)
	zero := SubtractUsage(u, u)
	assert.EqualValues(t, 0, zero.TotalTokens)
	assert.EqualValues(t, 0, zero.InputTokens)

	smaller := NewUsageMetadata(3, 3)
	diff := SubtractUsage(smaller, u)
	assert.EqualValues(t, 0, diff.InputTokens, "must floor rather than go negative")
	assert.EqualValues(t, 0, diff.OutputTokens)
}
