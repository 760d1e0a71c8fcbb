// Package ratelimit provides admission control for calls to the rate-limited
// external price API via a lazily-refilled token bucket.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultPollInterval is how often a blocked Acquire re-checks the bucket.
const DefaultPollInterval = 500 * time.Millisecond

// ErrTokensExhausted is returned when Acquire's maxWait elapses before
// enough tokens become available.
type ErrTokensExhausted struct {
	Cost      int
	Available int
	MaxWait   time.Duration
}

func (e *ErrTokensExhausted) Error() string {
	return fmt.Sprintf("tokens exhausted: need %d, have %d, waited %s", e.Cost, e.Available, e.MaxWait)
}

// Bucket is a single shared token bucket, mutated by every caller across the
// process. Refill is lazy: computed on every Acquire attempt from elapsed
// wall-clock time, never by a background timer.
type Bucket struct {
	mu       sync.Mutex
	tokens   float64
	capacity float64
	rate     float64 // tokens per second
	lastTime time.Time

	totalConsumed int64

	pollInterval time.Duration
}

// New creates a Bucket with the given capacity and refill rate (tokens per
// minute), starting full.
func New(capacity int, tokensPerMinute int) *Bucket {
	return &Bucket{
		tokens:       float64(capacity),
		capacity:     float64(capacity),
		rate:         float64(tokensPerMinute) / 60.0,
		lastTime:     time.Now(),
		pollInterval: DefaultPollInterval,
	}
}

// refill adds elapsed*rate tokens, capped at capacity. Caller must hold mu.
func (b *Bucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastTime).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed * b.rate
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.lastTime = now
}

// Acquire blocks until cost tokens are available, consuming them atomically.
// It fails with *ErrTokensExhausted if maxWait elapses first. maxWait <= 0
// uses a default of 120s.
func (b *Bucket) Acquire(ctx context.Context, cost int, maxWait time.Duration) error {
	if maxWait <= 0 {
		maxWait = 120 * time.Second
	}
	deadline := time.Now().Add(maxWait)

	for {
		b.mu.Lock()
		now := time.Now()
		b.refill(now)

		if b.tokens >= float64(cost) {
			b.tokens -= float64(cost)
			b.totalConsumed += int64(cost)
			b.mu.Unlock()
			return nil
		}
		available := int(b.tokens)
		b.mu.Unlock()

		if time.Now().After(deadline) {
			return &ErrTokensExhausted{Cost: cost, Available: available, MaxWait: maxWait}
		}

		wait := b.pollInterval
		if remaining := time.Until(deadline); remaining < wait {
			wait = remaining
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// Sync atomically replaces the current token count with the value reported
// by the server after a successful call, eliminating client-server drift.
// No attempt is made to reconcile ordering across overlapping in-flight
// requests — the upstream's own ordering semantics are undocumented.
func (b *Bucket) Sync(serverReported int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens = float64(serverReported)
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.lastTime = time.Now()
}

// Snapshot is a point-in-time read of bucket state.
type Snapshot struct {
	Available     int
	PerMinute     int
	LastRefill    time.Time
	TotalConsumed int64
}

// Snapshot returns the current bucket state without mutating it.
func (b *Bucket) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		Available:     int(b.tokens),
		PerMinute:     int(b.rate * 60),
		LastRefill:    b.lastTime,
		TotalConsumed: b.totalConsumed,
	}
}
