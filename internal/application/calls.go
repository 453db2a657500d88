package application

import (
	"time"

	"github.com/bnema/schoolday-cli/internal/domain"
	"github.com/bnema/schoolday-cli/internal/ports"
)

const DefaultDedupWindow = 15 * time.Second

// CallCoordinator decides whether a network call is needed and records its
// lifecycle in the session's freshness store. It performs no I/O.
type CallCoordinator struct {
	store       *Store[domain.CallState]
	clock       ports.Clock
	dedupWindow time.Duration
}

func NewCallCoordinator(clock ports.Clock, dedupWindow time.Duration) *CallCoordinator {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if dedupWindow <= 0 {
		dedupWindow = DefaultDedupWindow
	}

	return &CallCoordinator{
		store:       NewStore(domain.NewCallState()),
		clock:       clock,
		dedupWindow: dedupWindow,
	}
}

// ShouldFetch is false while sig is fresh for ttl or was started within the
// dedup window.
func (c *CallCoordinator) ShouldFetch(sig domain.CallSignature, ttl time.Duration) bool {
	return shouldFetch(c.store.State(), sig, ttl, c.dedupWindow, c.clock.Now())
}

// Claim runs ShouldFetch and RecordStart as one transition. Two goroutines
// claiming the same signature cannot both win.
func (c *CallCoordinator) Claim(sig domain.CallSignature, ttl time.Duration) bool {
	now := c.clock.Now()
	claimed := false

	c.store.Dispatch(func(state domain.CallState) domain.CallState {
		if !shouldFetch(state, sig, ttl, c.dedupWindow, now) {
			return state
		}
		claimed = true
		return domain.RecordCallStart(state, sig, now)
	})

	return claimed
}

func (c *CallCoordinator) RecordStart(sig domain.CallSignature) {
	now := c.clock.Now()
	c.store.Dispatch(func(state domain.CallState) domain.CallState {
		return domain.RecordCallStart(state, sig, now)
	})
}

func (c *CallCoordinator) RecordSuccess(sig domain.CallSignature, ttl time.Duration) {
	now := c.clock.Now()
	c.store.Dispatch(func(state domain.CallState) domain.CallState {
		return domain.RecordCallSuccess(state, sig, ttl, now)
	})
}

func (c *CallCoordinator) Invalidate(name string) {
	c.store.Dispatch(func(state domain.CallState) domain.CallState {
		return domain.InvalidateCalls(state, name)
	})
}

// Reset forgets every call type.
func (c *CallCoordinator) Reset() {
	c.store.Dispatch(func(domain.CallState) domain.CallState {
		return domain.NewCallState()
	})
}

// Restore replaces the freshness store with a persisted one. Start
// timestamps are dropped so a restored process never waits on a dedup
// window it did not open.
func (c *CallCoordinator) Restore(state domain.CallState) {
	restored := state.WithoutStarts()
	c.store.Dispatch(func(domain.CallState) domain.CallState {
		return restored
	})
}

func (c *CallCoordinator) State() domain.CallState {
	return c.store.State()
}

func (c *CallCoordinator) DedupWindow() time.Duration {
	return c.dedupWindow
}

func shouldFetch(state domain.CallState, sig domain.CallSignature, ttl, window time.Duration, now time.Time) bool {
	if state.IsFresh(sig, ttl, now) {
		return false
	}

	return !state.JustStarted(sig, window, now)
}
