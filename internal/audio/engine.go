package audio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"

	"github.com/lmorel/tome/internal/tags"
)

// ErrLoad is returned when a resource cannot be opened or decoded.
var ErrLoad = errors.New("audio: load failed")

// DefaultStatusInterval is the status feed period used when none is given.
const DefaultStatusInterval = 500 * time.Millisecond

var (
	speakerInitialized bool
	speakerSampleRate  beep.SampleRate
)

// Handle is one loaded audio resource.
type Handle struct {
	locator  string
	file     *os.File
	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
	volume   *effects.Volume
	duration time.Duration
}

// Locator returns the path the handle was loaded from.
func (h *Handle) Locator() string { return h.locator }

// Duration returns the decoded stream's total duration.
func (h *Handle) Duration() time.Duration { return h.duration }

// Engine is the beep-backed implementation of Interface.
type Engine struct {
	mu             sync.Mutex
	statusInterval time.Duration
	statusFn       func(Status)
	attached       *Handle
	stopTicker     chan struct{}
}

// New creates an engine emitting status snapshots every statusInterval.
func New(statusInterval time.Duration) *Engine {
	if statusInterval <= 0 {
		statusInterval = DefaultStatusInterval
	}
	return &Engine{statusInterval: statusInterval}
}

// SetStatusFunc registers the status sink.
func (e *Engine) SetStatusFunc(fn func(Status)) {
	e.mu.Lock()
	e.statusFn = fn
	e.mu.Unlock()
}

// Load opens and decodes locator, seeked to start. The handle is inert
// until Play attaches it.
func (e *Engine) Load(locator string, start time.Duration) (*Handle, error) {
	ext := strings.ToLower(filepath.Ext(locator))
	if !tags.IsAudioFile(locator) {
		return nil, fmt.Errorf("%w: unsupported format %q", ErrLoad, ext)
	}

	f, err := os.Open(locator)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}

	var streamer beep.StreamSeekCloser
	var format beep.Format

	switch ext {
	case tags.ExtMP3:
		streamer, format, err = mp3.Decode(f)
	case tags.ExtFLAC:
		streamer, format, err = flac.Decode(f)
	case tags.ExtOGG:
		streamer, format, err = vorbis.Decode(f)
	case tags.ExtWAV:
		streamer, format, err = wav.Decode(f)
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: decode %s: %v", ErrLoad, filepath.Base(locator), err)
	}

	h := &Handle{
		locator:  locator,
		file:     f,
		streamer: streamer,
		format:   format,
		duration: format.SampleRate.D(streamer.Len()),
	}

	if start > 0 {
		if start > h.duration {
			start = h.duration
		}
		// A failed seek starts the stream at the beginning.
		_ = streamer.Seek(format.SampleRate.N(start))
	}

	return h, nil
}

// Play attaches h to the speaker, replacing any attached handle, or
// resumes it when already attached.
func (e *Engine) Play(h *Handle) error {
	if h == nil {
		return nil
	}

	e.mu.Lock()
	if h.streamer == nil {
		e.mu.Unlock()
		return fmt.Errorf("%w: handle already unloaded", ErrLoad)
	}
	if e.attached == h {
		speaker.Lock()
		h.ctrl.Paused = false
		speaker.Unlock()
		e.mu.Unlock()
		e.emit()
		return nil
	}

	if !speakerInitialized {
		speakerSampleRate = h.format.SampleRate
		if err := speaker.Init(speakerSampleRate, speakerSampleRate.N(time.Second/10)); err != nil {
			e.mu.Unlock()
			return fmt.Errorf("speaker init: %w", err)
		}
		speakerInitialized = true
	}

	speaker.Clear()

	var playStreamer beep.Streamer = h.streamer
	if h.format.SampleRate != speakerSampleRate {
		playStreamer = beep.Resample(4, h.format.SampleRate, speakerSampleRate, h.streamer)
	}
	h.ctrl = &beep.Ctrl{Streamer: playStreamer, Paused: false}
	h.volume = &effects.Volume{Streamer: h.ctrl, Base: 2, Volume: 0, Silent: false}
	e.attached = h

	speaker.Play(beep.Seq(h.volume, beep.Callback(func() {
		e.onStreamEnd(h)
	})))

	e.ensureTickerLocked()
	e.mu.Unlock()
	e.emit()
	return nil
}

// Pause pauses the handle if it is attached.
func (e *Engine) Pause(h *Handle) {
	e.mu.Lock()
	if h == nil || e.attached != h || h.ctrl == nil {
		e.mu.Unlock()
		return
	}
	speaker.Lock()
	h.ctrl.Paused = true
	speaker.Unlock()
	e.mu.Unlock()
	e.emit()
}

// SeekTo positions the handle's stream at pos, clamped to its length.
func (e *Engine) SeekTo(h *Handle, pos time.Duration) {
	e.mu.Lock()
	if h == nil || h.streamer == nil {
		e.mu.Unlock()
		return
	}

	n := h.format.SampleRate.N(pos)
	n = max(n, 0)
	if maxPos := h.streamer.Len() - 1; n > maxPos {
		n = max(maxPos, 0)
	}

	speaker.Lock()
	_ = h.streamer.Seek(n)
	speaker.Unlock()
	e.mu.Unlock()
	e.emit()
}

// Unload detaches h if attached and releases its decoder and file.
func (e *Engine) Unload(h *Handle) {
	if h == nil {
		return
	}

	e.mu.Lock()
	if e.attached == h {
		speaker.Clear()
		e.attached = nil
		e.stopTickerLocked()
	}
	e.mu.Unlock()

	if h.streamer != nil {
		h.streamer.Close()
		h.streamer = nil
	}
	if h.file != nil {
		h.file.Close()
		h.file = nil
	}
	h.ctrl = nil
	h.volume = nil
}

// onStreamEnd is the beep end-of-sequence callback for h. It fires on
// the speaker goroutine with the speaker mutex held, so delivery moves
// to a fresh goroutine: the status sink may call back into the speaker
// (load the next segment, Clear, Play) and would otherwise self-deadlock.
func (e *Engine) onStreamEnd(h *Handle) {
	go e.streamEnded(h)
}

// streamEnded detaches h and reports the finished status. Never called
// on the speaker goroutine.
func (e *Engine) streamEnded(h *Handle) {
	e.mu.Lock()
	if e.attached != h {
		// A newer handle replaced this one before the callback ran.
		e.mu.Unlock()
		return
	}
	e.attached = nil
	e.stopTickerLocked()
	fn := e.statusFn
	e.mu.Unlock()

	if fn != nil {
		fn(Status{
			Position: h.duration,
			Duration: h.duration,
			Playing:  false,
			Finished: true,
		})
	}
}

func (e *Engine) ensureTickerLocked() {
	if e.stopTicker != nil {
		return
	}
	stop := make(chan struct{})
	e.stopTicker = stop
	go e.statusLoop(stop)
}

func (e *Engine) stopTickerLocked() {
	if e.stopTicker != nil {
		close(e.stopTicker)
		e.stopTicker = nil
	}
}

func (e *Engine) statusLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(e.statusInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			e.emit()
		}
	}
}

// emit sends one status snapshot for the attached handle. The status
// callback runs without the engine lock held.
func (e *Engine) emit() {
	e.mu.Lock()
	h := e.attached
	fn := e.statusFn
	if h == nil || fn == nil {
		e.mu.Unlock()
		return
	}

	speaker.Lock()
	pos := h.format.SampleRate.D(h.streamer.Position())
	playing := h.ctrl != nil && !h.ctrl.Paused
	speaker.Unlock()
	e.mu.Unlock()

	fn(Status{
		Position: pos,
		Duration: h.duration,
		Playing:  playing,
	})
}
