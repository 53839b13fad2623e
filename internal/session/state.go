// Package session owns the playback session: one coordinator drives the
// audio engine through a book's segments, persists progress and manages
// the delayed-start timer. One coordinator exists per active session,
// created at session start and cleared by Teardown.
package session

import "time"

// State is the session's lifecycle state.
type State int

const (
	StateEmpty State = iota
	StateLoading
	StatePlaying
	StatePaused
	StateFinished
	StateDelayPending
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateEmpty:
		return "Empty"
	case StateLoading:
		return "Loading"
	case StatePlaying:
		return "Playing"
	case StatePaused:
		return "Paused"
	case StateFinished:
		return "Finished"
	case StateDelayPending:
		return "DelayPending"
	default:
		return "Unknown"
	}
}

// IsActive returns true if a session holds a book (any state but Empty).
func (s State) IsActive() bool {
	return s != StateEmpty
}

// DelayInfo describes a pending delayed start.
type DelayInfo struct {
	Active    bool
	StartedAt time.Time
	Minutes   int
	FireAt    time.Time
}

// Snapshot is an immutable view of the session for the UI surface.
type Snapshot struct {
	State        State
	BookID       string
	BookTitle    string
	Segment      int
	SegmentCount int
	SegmentName  string
	Position     time.Duration
	Duration     time.Duration
	Delay        DelayInfo
}
