package progress

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeRemote is a scriptable Remote for store tests.
type fakeRemote struct {
	mu        sync.Mutex
	records   map[string]*Record
	saveErr   error
	getErr    error
	resetErr  error
	saveGate  chan struct{}
	saveCalls int
	completed []string
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{records: make(map[string]*Record)}
}

func (f *fakeRemote) SaveProgress(_ context.Context, rec Record) error {
	f.mu.Lock()
	f.saveCalls++
	gate := f.saveGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.records[rec.BookID] = &rec
	return nil
}

func (f *fakeRemote) GetProgress(_ context.Context, bookID string) (*Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	rec, ok := f.records[bookID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeRemote) ResetProgress(_ context.Context, bookID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resetErr != nil {
		return f.resetErr
	}
	delete(f.records, bookID)
	return nil
}

func (f *fakeRemote) MarkComplete(_ context.Context, bookID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, bookID)
	return nil
}

func newTestStore(t *testing.T, remote Remote) *Store {
	t.Helper()
	return NewStore(remote, setupTestCache(t), zerolog.Nop())
}

func TestStore_Save_WritesBothTiers(t *testing.T) {
	remote := newFakeRemote()
	s := newTestStore(t, remote)

	s.Save(context.Background(), Record{BookID: "b1", Position: time.Second})

	if remote.records["b1"] == nil {
		t.Error("remote tier missing record")
	}
	rec, _ := s.cache.Get("b1")
	if rec == nil {
		t.Error("local tier missing record")
	}
}

func TestStore_Save_LocalWriteSurvivesRemoteFailure(t *testing.T) {
	remote := newFakeRemote()
	remote.saveErr = errors.New("backend down")
	s := newTestStore(t, remote)

	s.Save(context.Background(), Record{BookID: "b1", Position: time.Second})

	rec, _ := s.cache.Get("b1")
	if rec == nil {
		t.Fatal("local cache must not depend on remote success")
	}
	if rec.Position != time.Second {
		t.Errorf("Position = %v, want 1s", rec.Position)
	}
}

func TestStore_Save_CoalescesInFlightSaves(t *testing.T) {
	remote := newFakeRemote()
	remote.saveGate = make(chan struct{})
	s := newTestStore(t, remote)

	done := make(chan struct{})
	go func() {
		s.Save(context.Background(), Record{BookID: "b1", Position: time.Second})
		close(done)
	}()

	// Wait until the first save is blocked inside the remote call.
	deadline := time.After(time.Second)
	for {
		remote.mu.Lock()
		started := remote.saveCalls == 1
		remote.mu.Unlock()
		if started {
			break
		}
		select {
		case <-deadline:
			t.Fatal("first save never reached the remote")
		case <-time.After(time.Millisecond):
		}
	}

	// A second save for the same book is skipped, not queued.
	s.Save(context.Background(), Record{BookID: "b1", Position: 2 * time.Second})

	close(remote.saveGate)
	<-done

	if got := remote.saveCalls; got != 1 {
		t.Errorf("remote save calls = %d, want 1 (coalesced)", got)
	}
}

func TestStore_Load_PrefersRemote(t *testing.T) {
	remote := newFakeRemote()
	remote.records["b1"] = &Record{BookID: "b1", Position: 5 * time.Second}
	s := newTestStore(t, remote)
	_ = s.cache.Save(Record{BookID: "b1", Position: time.Second, SavedAt: time.Now()})

	rec := s.Load(context.Background(), "b1")

	if rec == nil || rec.Position != 5*time.Second {
		t.Errorf("Load = %+v, want remote record (5s)", rec)
	}
}

func TestStore_Load_FallsBackToCacheOnRemoteFailure(t *testing.T) {
	remote := newFakeRemote()
	remote.getErr = errors.New("backend down")
	s := newTestStore(t, remote)
	_ = s.cache.Save(Record{BookID: "b1", Position: time.Second, SavedAt: time.Now()})

	rec := s.Load(context.Background(), "b1")

	if rec == nil || rec.Position != time.Second {
		t.Errorf("Load = %+v, want cached record (1s)", rec)
	}
}

func TestStore_Load_FallsBackToCacheOnRemoteAbsence(t *testing.T) {
	remote := newFakeRemote()
	s := newTestStore(t, remote)
	_ = s.cache.Save(Record{BookID: "b1", Position: time.Second, SavedAt: time.Now()})

	rec := s.Load(context.Background(), "b1")

	if rec == nil || rec.Position != time.Second {
		t.Errorf("Load = %+v, want cached record", rec)
	}
}

func TestStore_Load_AbsentEverywhereIsNil(t *testing.T) {
	s := newTestStore(t, newFakeRemote())

	if rec := s.Load(context.Background(), "b1"); rec != nil {
		t.Errorf("Load = %+v, want nil", rec)
	}
}

func TestStore_Load_NilRemoteUsesCacheOnly(t *testing.T) {
	s := newTestStore(t, nil)
	_ = s.cache.Save(Record{BookID: "b1", Position: time.Second, SavedAt: time.Now()})

	rec := s.Load(context.Background(), "b1")

	if rec == nil || rec.Position != time.Second {
		t.Errorf("Load = %+v, want cached record", rec)
	}
}

func TestStore_Reset_IdempotentOnAbsent(t *testing.T) {
	s := newTestStore(t, newFakeRemote())

	if err := s.Reset(context.Background(), "never-saved"); err != nil {
		t.Errorf("Reset of absent progress failed: %v", err)
	}
	if rec := s.Load(context.Background(), "never-saved"); rec != nil {
		t.Errorf("Load after reset = %+v, want nil", rec)
	}
}

func TestStore_Reset_DeletesBothTiers(t *testing.T) {
	remote := newFakeRemote()
	s := newTestStore(t, remote)
	s.Save(context.Background(), Record{BookID: "b1", Position: time.Second})

	if err := s.Reset(context.Background(), "b1"); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if remote.records["b1"] != nil {
		t.Error("remote record survived reset")
	}
	if rec, _ := s.cache.Get("b1"); rec != nil {
		t.Error("local record survived reset")
	}
}

func TestStore_Reset_LocalDeletedDespiteRemoteFailure(t *testing.T) {
	remote := newFakeRemote()
	remote.resetErr = errors.New("backend down")
	s := newTestStore(t, remote)
	s.Save(context.Background(), Record{BookID: "b1", Position: time.Second})

	err := s.Reset(context.Background(), "b1")

	if err == nil {
		t.Error("expected joined error from remote failure")
	}
	if rec, _ := s.cache.Get("b1"); rec != nil {
		t.Error("local tier must be attempted even when remote fails")
	}
}

func TestStore_MarkComplete(t *testing.T) {
	remote := newFakeRemote()
	s := newTestStore(t, remote)

	s.MarkComplete(context.Background(), "b1")

	if len(remote.completed) != 1 || remote.completed[0] != "b1" {
		t.Errorf("completed = %v", remote.completed)
	}
}
