package repair

// gate.go implements the session's loading flag.
//
// The gate is a semaphore with a single slot: the repair call holds it for
// the whole network round trip, and a second caller that finds it taken is
// rejected immediately instead of queueing. WaitForDrain lets shutdown wait
// for the outstanding call to finish.

import (
	"context"
	"sync"
	"time"
)

// Gate admits at most one repair call at a time.
type Gate struct {
	slot chan struct{}

	mu      sync.RWMutex
	started time.Time
}

// NewGate creates an open gate.
func NewGate() *Gate {
	return &Gate{slot: make(chan struct{}, 1)}
}

// TryAcquire takes the slot without blocking.
// Returns false if a call is already in flight.
func (g *Gate) TryAcquire() bool {
	select {
	case g.slot <- struct{}{}:
		g.mu.Lock()
		g.started = time.Now()
		g.mu.Unlock()
		return true
	default:
		return false
	}
}

// Release frees the slot. Must be called exactly once per successful TryAcquire.
func (g *Gate) Release() {
	g.mu.Lock()
	g.started = time.Time{}
	g.mu.Unlock()

	<-g.slot
}

// Busy reports whether a call holds the slot.
func (g *Gate) Busy() bool {
	return len(g.slot) > 0
}

// WaitForDrain blocks until the slot is free or ctx is done.
func (g *Gate) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if !g.Busy() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// GateStatus is a snapshot of the gate for monitoring.
type GateStatus struct {
	Busy     bool          `json:"busy"`
	InFlight time.Duration `json:"inFlightNs,omitempty"`
}

// Status returns the current gate state.
func (g *Gate) Status() GateStatus {
	g.mu.RLock()
	started := g.started
	g.mu.RUnlock()

	st := GateStatus{Busy: g.Busy()}
	if st.Busy && !started.IsZero() {
		st.InFlight = time.Since(started)
	}
	return st
}
