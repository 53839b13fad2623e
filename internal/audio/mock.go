package audio

import (
	"sync"
	"time"
)

// LoadCall records one Load invocation on the mock.
type LoadCall struct {
	Locator string
	Start   time.Duration
}

// Mock is a test double for the engine.
type Mock struct {
	mu        sync.Mutex
	statusFn  func(Status)
	loadErr   error
	playErr   error
	loadGate  chan struct{}
	durations map[string]time.Duration

	loadCalls   []LoadCall
	playCalls   []string
	pauseCalls  []string
	seekCalls   []time.Duration
	unloadCalls []string

	attached *Handle
	playing  bool
	loaded   map[*Handle]bool
}

// NewMock creates a new mock engine for testing.
func NewMock() *Mock {
	return &Mock{
		durations: make(map[string]time.Duration),
		loaded:    make(map[*Handle]bool),
	}
}

func (m *Mock) SetStatusFunc(fn func(Status)) {
	m.mu.Lock()
	m.statusFn = fn
	m.mu.Unlock()
}

func (m *Mock) Load(locator string, start time.Duration) (*Handle, error) {
	m.mu.Lock()
	m.loadCalls = append(m.loadCalls, LoadCall{Locator: locator, Start: start})
	gate := m.loadGate
	err := m.loadErr
	dur := m.durations[locator]
	m.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}

	h := &Handle{locator: locator, duration: dur}
	m.mu.Lock()
	m.loaded[h] = true
	m.mu.Unlock()
	return h, nil
}

func (m *Mock) Play(h *Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h == nil {
		return nil
	}
	m.playCalls = append(m.playCalls, h.locator)
	if m.playErr != nil {
		return m.playErr
	}
	m.attached = h
	m.playing = true
	return nil
}

func (m *Mock) Pause(h *Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h == nil {
		return
	}
	m.pauseCalls = append(m.pauseCalls, h.locator)
	if m.attached == h {
		m.playing = false
	}
}

func (m *Mock) SeekTo(_ *Handle, pos time.Duration) {
	m.mu.Lock()
	m.seekCalls = append(m.seekCalls, pos)
	m.mu.Unlock()
}

func (m *Mock) Unload(h *Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h == nil {
		return
	}
	m.unloadCalls = append(m.unloadCalls, h.locator)
	delete(m.loaded, h)
	if m.attached == h {
		m.attached = nil
		m.playing = false
	}
}

// Test helpers

// SetLoadError makes subsequent Loads fail with err.
func (m *Mock) SetLoadError(err error) {
	m.mu.Lock()
	m.loadErr = err
	m.mu.Unlock()
}

// SetPlayError makes subsequent Plays fail with err.
func (m *Mock) SetPlayError(err error) {
	m.mu.Lock()
	m.playErr = err
	m.mu.Unlock()
}

// SetDuration fixes the duration reported by handles loaded from locator.
func (m *Mock) SetDuration(locator string, d time.Duration) {
	m.mu.Lock()
	m.durations[locator] = d
	m.mu.Unlock()
}

// HoldLoads makes Load block until ReleaseLoads is called.
func (m *Mock) HoldLoads() {
	m.mu.Lock()
	m.loadGate = make(chan struct{})
	m.mu.Unlock()
}

// ReleaseLoads unblocks all held and future Loads.
func (m *Mock) ReleaseLoads() {
	m.mu.Lock()
	gate := m.loadGate
	m.loadGate = nil
	m.mu.Unlock()
	if gate != nil {
		close(gate)
	}
}

// EmitStatus delivers a status snapshot to the registered sink.
func (m *Mock) EmitStatus(st Status) {
	m.mu.Lock()
	fn := m.statusFn
	m.mu.Unlock()
	if fn != nil {
		fn(st)
	}
}

// SimulateFinished emits the end-of-stream snapshot for the attached handle.
func (m *Mock) SimulateFinished() {
	m.mu.Lock()
	h := m.attached
	if h != nil {
		m.attached = nil
		m.playing = false
	}
	fn := m.statusFn
	m.mu.Unlock()
	if h == nil || fn == nil {
		return
	}
	fn(Status{Position: h.duration, Duration: h.duration, Finished: true})
}

func (m *Mock) LoadCalls() []LoadCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]LoadCall(nil), m.loadCalls...)
}

func (m *Mock) PlayCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.playCalls...)
}

func (m *Mock) PauseCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.pauseCalls...)
}

func (m *Mock) SeekCalls() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Duration(nil), m.seekCalls...)
}

func (m *Mock) UnloadCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.unloadCalls...)
}

// LoadedLocators returns the locators of handles loaded but not unloaded.
func (m *Mock) LoadedLocators() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for h := range m.loaded {
		out = append(out, h.locator)
	}
	return out
}

// Attached returns the locator of the attached handle, or "".
func (m *Mock) Attached() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.attached == nil {
		return ""
	}
	return m.attached.locator
}

// Playing reports whether the mock considers itself playing.
func (m *Mock) Playing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playing
}
