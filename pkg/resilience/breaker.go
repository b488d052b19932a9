// Package resilience provides a circuit breaker for calls to external
// stores.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Breaker states.
type State int

const (
	StateClosed   State = iota // normal operation
	StateOpen                  // tripped, rejecting calls
	StateHalfOpen              // allowing probe calls
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

// ErrBreakerOpen is returned while the breaker rejects calls.
var ErrBreakerOpen = errors.New("breaker is open")

// BreakerOpts configures the breaker.
type BreakerOpts struct {
	// FailThreshold is the number of consecutive failures that trips it.
	FailThreshold int
	// Timeout is how long it stays open before allowing probes.
	Timeout time.Duration
	// HalfOpenMax is the number of probe calls allowed while half-open.
	HalfOpenMax int
}

// DefaultBreakerOpts provides sensible defaults.
var DefaultBreakerOpts = BreakerOpts{
	FailThreshold: 5,
	Timeout:       30 * time.Second,
	HalfOpenMax:   1,
}

// Breaker is a closed/open/half-open circuit breaker.
type Breaker struct {
	mu        sync.Mutex
	opts      BreakerOpts
	state     State
	failures  int
	openedAt  time.Time
	probes    int
	now       func() time.Time // for testing
}

// NewBreaker creates a breaker, filling unset options from defaults.
func NewBreaker(opts BreakerOpts) *Breaker {
	if opts.FailThreshold <= 0 {
		opts.FailThreshold = DefaultBreakerOpts.FailThreshold
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultBreakerOpts.Timeout
	}
	if opts.HalfOpenMax <= 0 {
		opts.HalfOpenMax = DefaultBreakerOpts.HalfOpenMax
	}
	return &Breaker{opts: opts, now: time.Now}
}

// State returns the current state, applying the open→half-open timeout.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentState()
}

// currentState must be called with mu held.
func (b *Breaker) currentState() State {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.opts.Timeout {
		b.state = StateHalfOpen
		b.probes = 0
	}
	return b.state
}

// Call runs f through the breaker.
func (b *Breaker) Call(ctx context.Context, f func(context.Context) error) error {
	b.mu.Lock()
	switch b.currentState() {
	case StateOpen:
		b.mu.Unlock()
		return ErrBreakerOpen
	case StateHalfOpen:
		if b.probes >= b.opts.HalfOpenMax {
			b.mu.Unlock()
			return ErrBreakerOpen
		}
		b.probes++
	}
	b.mu.Unlock()

	err := f(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.failures++
		if b.state == StateHalfOpen || b.failures >= b.opts.FailThreshold {
			b.state = StateOpen
			b.openedAt = b.now()
			b.failures = 0
			b.probes = 0
		}
		return err
	}

	if b.state == StateHalfOpen {
		b.state = StateClosed
	}
	b.failures = 0
	return nil
}
