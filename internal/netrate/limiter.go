// Package netrate throttles outbound REST fetches per source using a
// token-bucket limiter, so a misconfigured short refresh_interval on one
// source cannot hammer its upstream.
package netrate

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Manager owns one token-bucket limiter per configured source name, created
// lazily on first use with double-checked locking.
type Manager struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	rps      float64
	burst    int
}

// NewManager builds a Manager applying the same rps/burst to every source
// that requests a limiter through it.
func NewManager(rps float64, burst int) *Manager {
	return &Manager{
		limiters: make(map[string]*rate.Limiter),
		rps:      rps,
		burst:    burst,
	}
}

func (m *Manager) limiterFor(source string) *rate.Limiter {
	m.mu.RLock()
	l, ok := m.limiters[source]
	m.mu.RUnlock()
	if ok {
		return l
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.limiters[source]; ok {
		return l
	}
	l = rate.NewLimiter(rate.Limit(m.rps), m.burst)
	m.limiters[source] = l
	return l
}

// Allow reports whether a fetch for source may proceed right now without
// blocking.
func (m *Manager) Allow(source string) bool {
	return m.limiterFor(source).Allow()
}

// Wait blocks until source's limiter admits a request or ctx is cancelled.
func (m *Manager) Wait(ctx context.Context, source string) error {
	return m.limiterFor(source).Wait(ctx)
}

// Stats reports the current limiter state for every source seen so far.
func (m *Manager) Stats() map[string]Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	out := make(map[string]Stats, len(m.limiters))
	for source, l := range m.limiters {
		out[source] = Stats{
			RPS:             float64(l.Limit()),
			Burst:           l.Burst(),
			TokensAvailable: l.Tokens(),
			SampledAt:       now,
		}
	}
	return out
}

type Stats struct {
	RPS             float64   `json:"rps"`
	Burst           int       `json:"burst"`
	TokensAvailable float64   `json:"tokens_available"`
	SampledAt       time.Time `json:"sampled_at"`
}
