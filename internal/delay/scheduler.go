// Package delay owns a single-slot cancellable deferred trigger, used for
// the delayed-start ("sleep/wake") timer.
package delay

import (
	"sync"
	"time"
)

// Scheduler holds at most one pending timer. Arming replaces any pending
// timer atomically, so two timers never exist at once. The scheduler does
// not interpret cancellation; callers keep their own state consistent
// around Arm/Disarm.
type Scheduler struct {
	mu    sync.Mutex
	timer *time.Timer
}

// New creates an empty scheduler.
func New() *Scheduler {
	return &Scheduler{}
}

// Arm schedules fn to run after d, cancelling any pending invocation
// first. fn runs on its own goroutine.
func (s *Scheduler) Arm(d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		s.mu.Lock()
		if s.timer == t {
			s.timer = nil
		}
		s.mu.Unlock()
		fn()
	})
	s.timer = t
}

// Disarm cancels the pending invocation if any. Idempotent.
func (s *Scheduler) Disarm() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Armed reports whether an invocation is pending.
func (s *Scheduler) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}
