package dispatch

import (
	"sync"
	"time"
)

// Rematcher schedules one deferred re-match attempt per ride. A claim
// or cancellation cancels the pending timer; the callback itself must
// still re-check ride state, since a timer can fire while the claim is
// committing.
type Rematcher struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewRematcher creates an empty Rematcher.
func NewRematcher() *Rematcher {
	return &Rematcher{timers: make(map[string]*time.Timer)}
}

// Schedule arms a timer for the ride. An existing timer for the same
// ride is replaced.
func (r *Rematcher) Schedule(rideID string, delay time.Duration, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.timers[rideID]; ok {
		old.Stop()
	}

	r.timers[rideID] = time.AfterFunc(delay, func() {
		r.mu.Lock()
		delete(r.timers, rideID)
		r.mu.Unlock()
		fn()
	})
}

// Cancel stops the pending timer for the ride, if any.
func (r *Rematcher) Cancel(rideID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.timers[rideID]; ok {
		t.Stop()
		delete(r.timers, rideID)
	}
}

// Pending reports whether a timer is armed for the ride.
func (r *Rematcher) Pending(rideID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.timers[rideID]
	return ok
}

// Stop cancels every pending timer. Used during shutdown.
func (r *Rematcher) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for rideID, t := range r.timers {
		t.Stop()
		delete(r.timers, rideID)
	}
}
