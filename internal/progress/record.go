// Package progress persists playback positions to a remote backend with a
// local fallback cache.
package progress

import "time"

// Record is one persisted playback position for a book.
type Record struct {
	BookID       string
	Position     time.Duration
	SegmentIndex int
	Duration     time.Duration
	SavedAt      time.Time
}

// normalize coerces malformed values into the safe defaults: negative
// positions and indexes resume from the beginning.
func (r *Record) normalize() {
	if r.Position < 0 {
		r.Position = 0
	}
	if r.Duration < 0 {
		r.Duration = 0
	}
	if r.SegmentIndex < 0 {
		r.SegmentIndex = 0
	}
}
