package audio

import (
	"errors"
	"testing"
	"time"
)

func TestEngine_Load_UnsupportedFormat(t *testing.T) {
	e := New(0)

	_, err := e.Load("/books/cover.jpg", 0)

	if !errors.Is(err, ErrLoad) {
		t.Errorf("Load error = %v, want ErrLoad", err)
	}
}

func TestEngine_Load_MissingFile(t *testing.T) {
	e := New(0)

	_, err := e.Load("/nonexistent/chapter.mp3", 0)

	if !errors.Is(err, ErrLoad) {
		t.Errorf("Load error = %v, want ErrLoad", err)
	}
}

func TestEngine_StreamEndDeliveredOffCallbackPath(t *testing.T) {
	e := New(0)

	// A sink that re-enters the engine blocks until released, the way the
	// coordinator's segment advance drives the speaker from the status
	// callback. The beep end-of-sequence callback must still return
	// immediately; it runs on the speaker goroutine with its lock held.
	release := make(chan struct{})
	got := make(chan Status, 1)
	e.SetStatusFunc(func(st Status) {
		<-release
		got <- st
	})

	h := &Handle{locator: "/b/ch1.mp3", duration: 2 * time.Second}
	e.attached = h

	done := make(chan struct{})
	go func() {
		e.onStreamEnd(h)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("end-of-stream callback blocked on the status sink")
	}

	close(release)
	select {
	case st := <-got:
		if !st.Finished || st.Position != 2*time.Second {
			t.Errorf("status = %+v, want finished at 2s", st)
		}
	case <-time.After(time.Second):
		t.Fatal("finished status never delivered")
	}

	e.mu.Lock()
	attached := e.attached
	e.mu.Unlock()
	if attached != nil {
		t.Error("handle still attached after stream end")
	}
}

func TestMock_LoadRecordsCalls(t *testing.T) {
	m := NewMock()
	m.SetDuration("/b/ch1.mp3", time.Minute)

	h, err := m.Load("/b/ch1.mp3", 30*time.Second)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if h.Locator() != "/b/ch1.mp3" {
		t.Errorf("Locator = %q", h.Locator())
	}
	if h.Duration() != time.Minute {
		t.Errorf("Duration = %v, want 1m", h.Duration())
	}

	calls := m.LoadCalls()
	if len(calls) != 1 || calls[0].Start != 30*time.Second {
		t.Errorf("LoadCalls = %+v", calls)
	}
}

func TestMock_PlayPauseUnload(t *testing.T) {
	m := NewMock()
	h, _ := m.Load("/b/ch1.mp3", 0)

	if err := m.Play(h); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if !m.Playing() || m.Attached() != "/b/ch1.mp3" {
		t.Error("expected handle attached and playing")
	}

	m.Pause(h)
	if m.Playing() {
		t.Error("expected paused")
	}

	m.Unload(h)
	if m.Attached() != "" {
		t.Error("expected detached after unload")
	}
	if len(m.LoadedLocators()) != 0 {
		t.Error("expected no loaded handles after unload")
	}
}

func TestMock_SimulateFinishedEmitsStatus(t *testing.T) {
	m := NewMock()
	m.SetDuration("/b/ch1.mp3", 2*time.Second)

	var got []Status
	m.SetStatusFunc(func(st Status) { got = append(got, st) })

	h, _ := m.Load("/b/ch1.mp3", 0)
	_ = m.Play(h)
	m.SimulateFinished()

	if len(got) != 1 {
		t.Fatalf("got %d statuses, want 1", len(got))
	}
	if !got[0].Finished || got[0].Position != 2*time.Second {
		t.Errorf("status = %+v", got[0])
	}
}

func TestMock_HoldLoadsBlocksUntilRelease(t *testing.T) {
	m := NewMock()
	m.HoldLoads()

	done := make(chan struct{})
	go func() {
		_, _ = m.Load("/b/ch1.mp3", 0)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Load returned before release")
	case <-time.After(20 * time.Millisecond):
	}

	m.ReleaseLoads()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Load did not return after release")
	}
}
