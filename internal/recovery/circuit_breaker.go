// Package recovery provides the bounded-retry counter used by the MQTT
// runtime's reconnect loop: closed while attempts remain under the
// configured retry_limit, open (and therefore fatal) once it is exceeded.
package recovery

import (
	"fmt"
	"sync"
	"time"
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

// Breaker counts consecutive failures against a limit. Limit of -1 means
// unbounded, matching retry_limit's "None" semantics from the original
// config: the circuit never opens.
type Breaker struct {
	mu              sync.Mutex
	limit           int
	resetAfter      time.Duration
	state           State
	failures        int
	lastFailureTime time.Time
}

func NewBreaker(limit int, resetAfter time.Duration) *Breaker {
	return &Breaker{limit: limit, resetAfter: resetAfter, state: StateClosed}
}

// Allow reports whether another attempt may proceed. It transitions
// Open->HalfOpen once resetAfter has elapsed since the last failure.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.limit < 0 {
		return true
	}
	switch b.state {
	case StateClosed, StateHalfOpen:
		return true
	case StateOpen:
		if b.resetAfter > 0 && time.Since(b.lastFailureTime) > b.resetAfter {
			b.state = StateHalfOpen
			return true
		}
		return false
	default:
		return false
	}
}

// RecordFailure increments the failure count and opens the circuit once
// the limit is exceeded. Returns true if the circuit just opened.
func (b *Breaker) RecordFailure() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailureTime = time.Now()
	if b.limit >= 0 && b.failures > b.limit {
		opened := b.state != StateOpen
		b.state = StateOpen
		return opened
	}
	return false
}

// RecordSuccess clears the failure count and closes the circuit.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.state = StateClosed
}

func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) Error() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return fmt.Errorf("reconnect attempts exhausted (%d failures, limit %d)", b.failures, b.limit)
}
