package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/runloom/core/llmerrors"
)

func TestAdaptiveBacksOffOnRateLimitedError(t *testing.T) {
	a := NewAdaptive(1000, 1000)
	before := a.currentTPM
	a.Observe(&llmerrors.TransportError{StatusCode: 429})
	assert.Less(t, a.currentTPM, before)
}

func TestAdaptiveProbesUpOnSuccess(t *testing.T) {
	a := NewAdaptive(1000, 2000)
	a.Observe(&llmerrors.TransportError{StatusCode: 429})
	backedOff := a.currentTPM
	a.Observe(nil)
	assert.Greater(t, a.currentTPM, backedOff)
}

func TestAdaptiveNeverExceedsMax(t *testing.T) {
	a := NewAdaptive(1000, 1010)
	for i := 0; i < 20; i++ {
		a.Observe(nil)
	}
	assert.LessOrEqual(t, a.currentTPM, 1010.0)
}
