package health

import (
	"sync"
	"time"
)

// BreakerState is the state of a single provider's circuit breaker.
type BreakerState string

const (
	StateClosed   BreakerState = "closed"
	StateOpen     BreakerState = "open"
	StateHalfOpen BreakerState = "half_open"
)

type breakerEntry struct {
	state          BreakerState
	failureCount   int
	openedAt       time.Time
}

// BreakerRegistry is a per-provider circuit breaker (CLOSED/OPEN/HALF_OPEN)
// independent of the health bit — a provider can be healthy but breaker-open
// (recent failures) or unhealthy but breaker-closed (never tried).
type BreakerRegistry struct {
	mu               sync.Mutex
	entries          map[string]*breakerEntry
	failureThreshold int
	cooldown         time.Duration
}

// NewBreakerRegistry creates a registry where a provider trips OPEN after
// failureThreshold consecutive failures and stays OPEN for cooldown before
// probing again via HALF_OPEN.
func NewBreakerRegistry(failureThreshold int, cooldown time.Duration) *BreakerRegistry {
	return &BreakerRegistry{
		entries:          make(map[string]*breakerEntry),
		failureThreshold: failureThreshold,
		cooldown:         cooldown,
	}
}

func (b *BreakerRegistry) entry(provider string) *breakerEntry {
	e, ok := b.entries[provider]
	if !ok {
		e = &breakerEntry{state: StateClosed}
		b.entries[provider] = e
	}
	return e
}

// State returns the current breaker state, promoting OPEN to HALF_OPEN once
// the cooldown has elapsed.
func (b *BreakerRegistry) State(provider string) BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	e := b.entry(provider)
	if e.state == StateOpen && time.Since(e.openedAt) >= b.cooldown {
		e.state = StateHalfOpen
	}
	return e.state
}

// RecordSuccess closes the breaker and resets the failure count. A success
// while HALF_OPEN confirms recovery; a success while CLOSED clears any
// failures counted so far.
func (b *BreakerRegistry) RecordSuccess(provider string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e := b.entry(provider)
	e.state = StateClosed
	e.failureCount = 0
}

// RecordFailure increments the failure count and trips the breaker OPEN once
// the threshold is reached. A failure while HALF_OPEN immediately re-opens.
func (b *BreakerRegistry) RecordFailure(provider string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e := b.entry(provider)
	e.failureCount++
	if e.state == StateHalfOpen || e.failureCount >= b.failureThreshold {
		e.state = StateOpen
		e.openedAt = time.Now()
	}
}

// Reset forces a provider's breaker back to CLOSED (operator override).
func (b *BreakerRegistry) Reset(provider string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e := b.entry(provider)
	e.state = StateClosed
	e.failureCount = 0
}

// Snapshot returns the current state of every provider with breaker history.
func (b *BreakerRegistry) Snapshot() map[string]BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]BreakerState, len(b.entries))
	for p := range b.entries {
		if b.entries[p].state == StateOpen && time.Since(b.entries[p].openedAt) >= b.cooldown {
			b.entries[p].state = StateHalfOpen
		}
		out[p] = b.entries[p].state
	}
	return out
}
