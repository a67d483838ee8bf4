// Package ratelimit bounds bursts of agent-reported filesystem callbacks
// (FS event storms) with a per-key token bucket, using golang.org/x/time/rate the way the teacher bounds webhook
// traffic with its own hand-rolled limiter
// (internal/channels/ratelimit.go) — here the domain library itself does
// the bucketing instead of a hand-rolled sliding window, since
// golang.org/x/time is a real dependency of the teacher's stack with no
// other home in this server.
package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// Limiter bounds the rate of events per key (the bridge uses the callback
// tool name), dropping all buckets once maxKeys keys are tracked so memory
// does not grow unboundedly under key rotation.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	rate    rate.Limit
	burst   int
	maxKeys int
}

// DefaultBurst and DefaultRate mirror the bridge's expected steady-state
// load: a handful of filesystem callbacks per tool invocation, with
// headroom for a burst of directory-listing entries.
const (
	DefaultRate    = 20 // events/sec sustained
	DefaultBurst   = 40
	DefaultMaxKeys = 4096
)

// New builds a Limiter allowing eventsPerSecond sustained with burst
// headroom, tracking at most maxKeys distinct keys at once.
func New(eventsPerSecond float64, burst, maxKeys int) *Limiter {
	if burst <= 0 {
		burst = DefaultBurst
	}
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}
	return &Limiter{
		buckets: make(map[string]*rate.Limiter),
		rate:    rate.Limit(eventsPerSecond),
		burst:   burst,
		maxKeys: maxKeys,
	}
}

// Allow reports whether an event for key may proceed now, creating a
// fresh bucket for previously unseen keys. When the tracked-key count
// would exceed maxKeys, every existing bucket is discarded (all keys start
// again with a full burst) to bound memory the same way the teacher's
// limiter hard-evicts at its own cap.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		if len(l.buckets) >= l.maxKeys {
			l.buckets = make(map[string]*rate.Limiter)
		}
		b = rate.NewLimiter(l.rate, l.burst)
		l.buckets[key] = b
	}
	return b.Allow()
}
