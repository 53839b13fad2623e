// Package audio wraps the beep playback stack behind a handle-based engine.
// The engine owns the speaker; callers own handles. At most one handle is
// attached to the speaker at a time, but several may be loaded while a
// superseded load drains.
package audio

import "time"

// Status is a snapshot of the engine's playback state for the attached
// handle. It is emitted periodically while a handle is attached and once
// with Finished set when the stream ends.
type Status struct {
	Position time.Duration
	Duration time.Duration
	Playing  bool
	Finished bool
}

// Interface defines the engine contract for dependency injection and testing.
type Interface interface {
	// Load opens and decodes the resource at locator, positioned at start.
	// The returned handle is not yet audible; call Play to attach it.
	Load(locator string, start time.Duration) (*Handle, error)
	// Play attaches the handle to the speaker (replacing any attached
	// handle) or resumes it if already attached.
	Play(h *Handle) error
	Pause(h *Handle)
	SeekTo(h *Handle, pos time.Duration)
	// Unload detaches the handle if attached and releases its resources.
	Unload(h *Handle)
	// SetStatusFunc registers the sink for status snapshots. The engine
	// never calls it while holding internal locks.
	SetStatusFunc(fn func(Status))
}

// Verify implementations at compile time.
var (
	_ Interface = (*Engine)(nil)
	_ Interface = (*Mock)(nil)
)
