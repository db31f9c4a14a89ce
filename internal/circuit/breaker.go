// Package circuit wraps per-source REST fetches in a circuit breaker so a
// source failing at the transport layer (DNS, TLS, connection refused) is
// shed fast instead of retried on every dispatcher tick. It is independent
// of the health/backoff bookkeeping in internal/health: the breaker guards
// the fetch call itself, the health registry governs scheduling.
package circuit

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrOpen    = errors.New("circuit: source breaker is open")
	ErrTimeout = errors.New("circuit: request timed out")
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config tunes one source's breaker. Defaults (see NewSourceBreaker) trip
// after 5 consecutive failures; unlike the gobreaker-based reconnect breaker
// for streaming sources, there is no failure-ratio trip.
type Config struct {
	FailureThreshold int
	SuccessThreshold int
	OpenTimeout      time.Duration
	RequestTimeout   time.Duration
}

// NewSourceBreaker returns the Config used for every REST/stream source
// breaker in this daemon.
func NewSourceBreaker() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OpenTimeout:      60 * time.Second,
		RequestTimeout:   15 * time.Second,
	}
}

// Breaker is a single source's circuit breaker.
type Breaker struct {
	mu              sync.Mutex
	cfg             Config
	state           State
	failures        int
	successes       int
	lastFailure     time.Time
	lastStateChange time.Time
	totalRequests   int64
	totalFailures   int64
}

func New(cfg Config) *Breaker {
	return &Breaker{cfg: cfg, state: StateClosed, lastStateChange: time.Now()}
}

// Call runs fn if the breaker is closed or half-open (recovery probe), and
// records the outcome. fn is given a context bounded by cfg.RequestTimeout.
func (b *Breaker) Call(ctx context.Context, fn func(context.Context) error) error {
	if !b.allow() {
		return ErrOpen
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, b.cfg.RequestTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(timeoutCtx) }()

	select {
	case err := <-done:
		b.record(err == nil)
		return err
	case <-timeoutCtx.Done():
		b.record(false)
		return ErrTimeout
	}
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(b.lastFailure) > b.cfg.OpenTimeout {
			b.transition(StateHalfOpen)
			return true
		}
		return false
	default: // half-open: allow one probe at a time is not enforced; simplicity over strictness
		return true
	}
}

func (b *Breaker) record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalRequests++
	if success {
		switch b.state {
		case StateClosed:
			b.failures = 0
		case StateHalfOpen:
			b.successes++
			if b.successes >= b.cfg.SuccessThreshold {
				b.transition(StateClosed)
			}
		}
		return
	}

	b.totalFailures++
	b.lastFailure = time.Now()
	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.transition(StateOpen)
		}
	case StateHalfOpen:
		b.transition(StateOpen)
	}
}

func (b *Breaker) transition(s State) {
	if b.state == s {
		return
	}
	b.state = s
	b.lastStateChange = time.Now()
	if s == StateHalfOpen {
		b.failures = 0
		b.successes = 0
	}
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Registry owns one Breaker per source name, created lazily.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*Breaker
	cfg      Config
}

func NewRegistry(cfg Config) *Registry {
	return &Registry{breakers: make(map[string]*Breaker), cfg: cfg}
}

func (r *Registry) For(source string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[source]
	if !ok {
		b = New(r.cfg)
		r.breakers[source] = b
	}
	return b
}
