// Package ratelimit implements the BaseRateLimiter capability a
// ChatModel acquires a token from before issuing a request (spec.md
// §4.6 step 3, §6.12), grounded on the AIMD adaptive limiter pattern
// and built on golang.org/x/time/rate.
package ratelimit

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/time/rate"

	"github.com/runloom/core/llmerrors"
)

// BaseRateLimiter is the capability a ChatModel checks before issuing
// a request; Acquire blocks (respecting ctx cancellation) until a
// token for estimatedTokens is available.
type BaseRateLimiter interface {
	Acquire(ctx context.Context, estimatedTokens int) error
}

// TokenBucket is a fixed-budget BaseRateLimiter: a thin wrapper over
// rate.Limiter expressed in tokens-per-minute rather than
// events-per-second.
type TokenBucket struct {
	limiter *rate.Limiter
}

// NewTokenBucket builds a TokenBucket with the given tokens-per-minute
// budget and burst capacity.
func NewTokenBucket(tokensPerMinute float64, burst int) *TokenBucket {
	return &TokenBucket{limiter: rate.NewLimiter(rate.Limit(tokensPerMinute/60.0), burst)}
}

func (b *TokenBucket) Acquire(ctx context.Context, estimatedTokens int) error {
	if estimatedTokens <= 0 {
		estimatedTokens = 1
	}
	return b.limiter.WaitN(ctx, estimatedTokens)
}

// Adaptive is an AIMD-style BaseRateLimiter: it halves its effective
// budget whenever Observe is told the provider rate-limited the last
// call, and probes upward by a fixed recovery increment on every
// success, never exceeding maxTPM nor dropping below minTPM.
type Adaptive struct {
	mu sync.Mutex

	limiter *rate.Limiter

	currentTPM   float64
	minTPM       float64
	maxTPM       float64
	recoveryRate float64

	OnBackoff func(newTPM float64)
	OnProbe   func(newTPM float64)
}

// NewAdaptive builds an Adaptive limiter. maxTPM is clamped up to
// initialTPM if it is smaller; minTPM defaults to 10% of initial, the
// recovery increment to 5% of initial.
func NewAdaptive(initialTPM, maxTPM float64) *Adaptive {
	if initialTPM <= 0 {
		initialTPM = 60000
	}
	if maxTPM <= 0 || maxTPM < initialTPM {
		maxTPM = initialTPM
	}
	minTPM := initialTPM * 0.1
	if minTPM < 1 {
		minTPM = 1
	}
	recoveryRate := initialTPM * 0.05
	if recoveryRate < 1 {
		recoveryRate = 1
	}
	return &Adaptive{
		limiter:      rate.NewLimiter(rate.Limit(initialTPM/60.0), int(initialTPM)),
		currentTPM:   initialTPM,
		minTPM:       minTPM,
		maxTPM:       maxTPM,
		recoveryRate: recoveryRate,
	}
}

func (a *Adaptive) Acquire(ctx context.Context, estimatedTokens int) error {
	if estimatedTokens <= 0 {
		estimatedTokens = 1
	}
	return a.limiter.WaitN(ctx, estimatedTokens)
}

// Observe feeds the outcome of a completed request back into the
// limiter: a TransportError reporting 429 triggers backoff, a nil error
// triggers a probe step, and any other error leaves the budget as is.
func (a *Adaptive) Observe(err error) {
	if err == nil {
		a.probe()
		return
	}
	var transportErr *llmerrors.TransportError
	if errors.As(err, &transportErr) && transportErr.IsRateLimited() {
		a.backoff()
	}
}

func (a *Adaptive) backoff() {
	a.mu.Lock()
	newTPM := a.currentTPM * 0.5
	if newTPM < a.minTPM {
		newTPM = a.minTPM
	}
	if newTPM == a.currentTPM {
		a.mu.Unlock()
		return
	}
	a.currentTPM = newTPM
	a.limiter.SetLimit(rate.Limit(newTPM / 60.0))
	a.limiter.SetBurst(int(newTPM))
	cb := a.OnBackoff
	a.mu.Unlock()
	if cb != nil {
		cb(newTPM)
	}
}

func (a *Adaptive) probe() {
	a.mu.Lock()
	newTPM := a.currentTPM + a.recoveryRate
	if newTPM > a.maxTPM {
		newTPM = a.maxTPM
	}
	if newTPM == a.currentTPM {
		a.mu.Unlock()
		return
	}
	a.currentTPM = newTPM
	a.limiter.SetLimit(rate.Limit(newTPM / 60.0))
	a.limiter.SetBurst(int(newTPM))
	cb := a.OnProbe
	a.mu.Unlock()
	if cb != nil {
		cb(newTPM)
	}
}
