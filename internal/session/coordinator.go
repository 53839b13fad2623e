package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lmorel/tome/internal/audio"
	"github.com/lmorel/tome/internal/book"
	"github.com/lmorel/tome/internal/delay"
	"github.com/lmorel/tome/internal/progress"
)

var (
	// ErrInvalidDelay is returned for non-positive delay durations.
	ErrInvalidDelay = errors.New("session: delay minutes must be positive")
	// ErrEmptyBook is returned when a book has no segments to play.
	ErrEmptyBook = errors.New("session: book has no segments")
)

// DefaultAutosaveInterval is the autosave period used when none is given.
const DefaultAutosaveInterval = 10 * time.Second

// Store is the progress persistence consumed by the coordinator.
type Store interface {
	Save(ctx context.Context, rec progress.Record)
	Load(ctx context.Context, bookID string) *progress.Record
	Reset(ctx context.Context, bookID string) error
	MarkComplete(ctx context.Context, bookID string)
}

// Verify progress.Store implements Store at compile time.
var _ Store = (*progress.Store)(nil)

// Coordinator owns the active playback session. All mutation of session
// state happens under one mutex; engine and store I/O run outside it.
// Loads carry a generation stamp so a completion that arrives after a
// newer load (or a teardown) is discarded instead of applied.
type Coordinator struct {
	engine        audio.Interface
	store         Store
	sched         *delay.Scheduler
	log           zerolog.Logger
	autosaveEvery time.Duration

	mu       sync.Mutex
	book     *book.Book
	handle   *audio.Handle
	segment  int
	position time.Duration
	duration time.Duration
	playing  bool
	loading  bool
	finished bool

	delayActive  bool
	delayStarted time.Time
	delayMinutes int
	delayBook    *book.Book
	delayGen     uint64

	gen          uint64
	autosaveStop chan struct{}

	subsMu sync.RWMutex
	subs   []*Subscription
}

// New creates a coordinator over the given collaborators and registers
// itself as the engine's status sink.
func New(engine audio.Interface, store Store, sched *delay.Scheduler, log zerolog.Logger, autosaveEvery time.Duration) *Coordinator {
	if autosaveEvery <= 0 {
		autosaveEvery = DefaultAutosaveInterval
	}
	c := &Coordinator{
		engine:        engine,
		store:         store,
		sched:         sched,
		log:           log,
		autosaveEvery: autosaveEvery,
	}
	engine.SetStatusFunc(c.handleStatus)
	return c
}

// Open starts a session for bk, tearing down any active session first.
// With resume set, the start position comes from the progress store;
// otherwise playback starts from the book's own resume fields (zero for
// a freshly discovered book, the carried position for a delayed start).
// Malformed or out-of-range stored progress falls back to segment 0,
// position 0.
func (c *Coordinator) Open(ctx context.Context, bk *book.Book, resume bool) error {
	if bk == nil || len(bk.Segments) == 0 {
		return ErrEmptyBook
	}

	c.Teardown(ctx)

	seg, pos := bk.SegmentIndex, bk.Position
	if !bk.ValidIndex(seg) || pos < 0 {
		seg, pos = 0, 0
	}
	if resume {
		if rec := c.store.Load(ctx, bk.ID); rec != nil {
			seg, pos = rec.SegmentIndex, rec.Position
			if !bk.ValidIndex(seg) || pos < 0 {
				seg, pos = 0, 0
			}
		}
	}

	c.mu.Lock()
	c.book = bk
	c.segment = seg
	c.position = pos
	c.duration = bk.Segments[seg].Duration
	c.loading = true
	c.playing = false
	c.finished = false
	bk.SegmentIndex = seg
	bk.Position = pos
	gen := c.bumpGenLocked()
	locator := bk.Segments[seg].Path
	c.mu.Unlock()
	c.notify()

	c.log.Info().Str("book_id", bk.ID).Int("segment", seg).
		Dur("position", pos).Msg("opening book")

	return c.finishLoad(gen, locator, pos)
}

// finishLoad completes a generation-stamped load: it loads the segment,
// discards the result if a newer load or teardown superseded it, and
// otherwise attaches it and starts playback.
func (c *Coordinator) finishLoad(gen uint64, locator string, start time.Duration) error {
	h, err := c.engine.Load(locator, start)

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		if err == nil {
			c.engine.Unload(h)
		}
		c.log.Debug().Str("segment", locator).Msg("stale load discarded")
		return nil
	}
	if err != nil {
		c.loading = false
		c.playing = false
		c.mu.Unlock()
		c.notify()
		c.log.Error().Err(err).Str("segment", locator).Msg("segment load failed")
		return fmt.Errorf("load segment: %w", err)
	}

	c.handle = h
	c.loading = false
	if d := h.Duration(); d > 0 {
		c.duration = d
	}
	c.mu.Unlock()

	if err := c.engine.Play(h); err != nil {
		c.log.Error().Err(err).Str("segment", locator).Msg("playback start failed")
		c.notify()
		return fmt.Errorf("start playback: %w", err)
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		c.engine.Unload(h)
		return nil
	}
	c.playing = true
	c.ensureAutosaveLocked()
	c.mu.Unlock()
	c.notify()
	return nil
}

// TogglePlayPause pauses or resumes the session. While a delay is
// pending the same affordance cancels the delay instead; no engine call
// is made. No-op without an active, loaded session.
func (c *Coordinator) TogglePlayPause(ctx context.Context) {
	c.mu.Lock()
	if c.delayActive {
		c.mu.Unlock()
		c.CancelDelayedStart()
		return
	}
	if c.book == nil || c.handle == nil || c.loading {
		c.mu.Unlock()
		return
	}

	h := c.handle
	if c.playing {
		c.playing = false
		rec := c.recordLocked()
		c.mu.Unlock()
		c.engine.Pause(h)
		c.store.Save(ctx, rec)
		c.notify()
		return
	}

	c.playing = true
	c.mu.Unlock()
	if err := c.engine.Play(h); err != nil {
		c.log.Error().Err(err).Msg("resume failed")
		c.mu.Lock()
		c.playing = false
		c.mu.Unlock()
	}
	c.notify()
}

// SeekBy seeks relative to the current position, clamped to the current
// segment. Disabled while a delay is pending.
func (c *Coordinator) SeekBy(delta time.Duration) {
	c.mu.Lock()
	if c.delayActive || c.handle == nil {
		c.mu.Unlock()
		return
	}
	c.seekLocked(c.position + delta)
}

// SeekTo seeks to an absolute position, clamped to the current segment.
func (c *Coordinator) SeekTo(pos time.Duration) {
	c.mu.Lock()
	if c.delayActive || c.handle == nil {
		c.mu.Unlock()
		return
	}
	c.seekLocked(pos)
}

// seekLocked applies a clamped seek; the caller holds the lock, which
// is released before the engine call.
func (c *Coordinator) seekLocked(pos time.Duration) {
	if pos < 0 {
		pos = 0
	}
	if pos > c.duration {
		pos = c.duration
	}
	c.position = pos
	if c.book != nil {
		c.book.Position = pos
	}
	h := c.handle
	c.mu.Unlock()
	c.engine.SeekTo(h, pos)
	c.notify()
}

// ScheduleDelayedStart arms the delayed-start timer for bk. Any active
// playback resource is released first and any pending delay replaced;
// delay and playback are mutually exclusive.
func (c *Coordinator) ScheduleDelayedStart(ctx context.Context, bk *book.Book, minutes int) error {
	if minutes <= 0 {
		return ErrInvalidDelay
	}
	if bk == nil || len(bk.Segments) == 0 {
		return ErrEmptyBook
	}

	c.mu.Lock()
	stop := c.autosaveStop
	c.autosaveStop = nil
	old := c.handle
	c.handle = nil
	var rec *progress.Record
	if c.book != nil && c.playing {
		r := c.recordLocked()
		rec = &r
	}
	c.book = nil
	c.segment = 0
	c.position = 0
	c.duration = 0
	c.playing = false
	c.loading = false
	c.finished = false
	c.bumpGenLocked()
	c.delayActive = true
	c.delayStarted = time.Now()
	c.delayMinutes = minutes
	c.delayBook = bk
	c.delayGen++
	dgen := c.delayGen
	c.sched.Arm(time.Duration(minutes)*time.Minute, func() { c.delayFired(dgen) })
	c.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	if old != nil {
		c.engine.Unload(old)
	}
	if rec != nil {
		c.store.Save(ctx, *rec)
	}

	c.log.Info().Str("book_id", bk.ID).Int("minutes", minutes).Msg("delayed start armed")
	c.notify()
	return nil
}

// delayFired runs when the delay timer elapses and routes back through
// the load path. The generation stamp discards a firing that raced with
// a re-arm or cancel.
func (c *Coordinator) delayFired(dgen uint64) {
	c.mu.Lock()
	if !c.delayActive || dgen != c.delayGen {
		c.mu.Unlock()
		return
	}
	c.delayActive = false
	bk := c.delayBook
	c.delayBook = nil
	c.delayMinutes = 0
	c.delayStarted = time.Time{}
	c.mu.Unlock()

	c.log.Info().Str("book_id", bk.ID).Msg("delayed start firing")
	if err := c.Open(context.Background(), bk, false); err != nil {
		c.log.Error().Err(err).Msg("delayed start failed")
	}
}

// CancelDelayedStart cancels the pending delay if any. Idempotent.
func (c *Coordinator) CancelDelayedStart() {
	c.mu.Lock()
	c.sched.Disarm()
	changed := c.delayActive
	c.delayActive = false
	c.delayBook = nil
	c.delayMinutes = 0
	c.delayStarted = time.Time{}
	c.mu.Unlock()

	if changed {
		c.log.Info().Msg("delayed start cancelled")
		c.notify()
	}
}

// Teardown stops the autosave loop, flushes one final progress save,
// cancels any pending delay, unloads the engine and clears the session.
// Safe to call with no session.
func (c *Coordinator) Teardown(ctx context.Context) {
	c.mu.Lock()
	c.sched.Disarm()
	stop := c.autosaveStop
	c.autosaveStop = nil
	old := c.handle
	c.handle = nil

	var rec *progress.Record
	if c.book != nil && !c.finished {
		r := c.recordLocked()
		rec = &r
	}
	had := c.book != nil || c.delayActive

	c.book = nil
	c.segment = 0
	c.position = 0
	c.duration = 0
	c.playing = false
	c.loading = false
	c.finished = false
	c.delayActive = false
	c.delayBook = nil
	c.delayMinutes = 0
	c.delayStarted = time.Time{}
	c.bumpGenLocked()
	c.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	if old != nil {
		c.engine.Unload(old)
	}
	if rec != nil {
		c.store.Save(ctx, *rec)
	}
	if had {
		c.notify()
	}
}

// ResetProgress deletes the stored progress for a book.
func (c *Coordinator) ResetProgress(ctx context.Context, bookID string) error {
	return c.store.Reset(ctx, bookID)
}

// handleStatus is the sole path by which position, duration and the
// playing flag follow the engine's ground truth. A finished snapshot
// triggers segment advance.
func (c *Coordinator) handleStatus(st audio.Status) {
	c.mu.Lock()
	if c.book == nil || c.handle == nil || c.loading {
		c.mu.Unlock()
		return
	}

	if st.Finished {
		c.advanceLocked()
		return
	}

	c.position = st.Position
	if st.Duration > 0 {
		c.duration = st.Duration
	}
	c.playing = st.Playing
	c.book.Position = st.Position
	c.mu.Unlock()
	c.notify()
}

// advanceLocked handles end-of-segment. Multi-segment books play
// continuously: the next segment loads at position 0 and resumes
// automatically. The last segment leaves a terminal finished state with
// the book retained. Called with the lock held; releases it.
func (c *Coordinator) advanceLocked() {
	old := c.handle
	c.handle = nil
	bk := c.book

	if c.segment < len(bk.Segments)-1 {
		c.segment++
		c.position = 0
		c.duration = bk.Segments[c.segment].Duration
		c.loading = true
		c.playing = false
		bk.SegmentIndex = c.segment
		bk.Position = 0
		gen := c.bumpGenLocked()
		locator := bk.Segments[c.segment].Path
		rec := c.recordLocked()
		c.mu.Unlock()

		if old != nil {
			c.engine.Unload(old)
		}
		c.store.Save(context.Background(), rec)
		c.notify()

		c.log.Info().Str("book_id", bk.ID).Int("segment", rec.SegmentIndex).Msg("advancing segment")
		if err := c.finishLoad(gen, locator, 0); err != nil {
			c.log.Error().Err(err).Msg("segment advance failed")
		}
		return
	}

	c.playing = false
	c.finished = true
	c.position = c.duration
	bk.Position = c.duration
	rec := c.recordLocked()
	bookID := bk.ID
	c.mu.Unlock()

	if old != nil {
		c.engine.Unload(old)
	}
	c.store.Save(context.Background(), rec)
	c.store.MarkComplete(context.Background(), bookID)
	c.notify()

	c.log.Info().Str("book_id", bookID).Msg("book finished")
}

// Snapshot returns an immutable view of the session.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe creates a snapshot subscription.
func (c *Coordinator) Subscribe() *Subscription {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	sub := newSubscription()
	c.subs = append(c.subs, sub)
	return sub
}

// Close tears the session down and closes all subscriptions.
func (c *Coordinator) Close() {
	c.Teardown(context.Background())

	c.subsMu.Lock()
	for _, sub := range c.subs {
		sub.close()
	}
	c.subs = nil
	c.subsMu.Unlock()
}

func (c *Coordinator) ensureAutosaveLocked() {
	if c.autosaveStop != nil {
		return
	}
	stop := make(chan struct{})
	c.autosaveStop = stop
	go c.autosaveLoop(stop)
}

func (c *Coordinator) autosaveLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(c.autosaveEvery)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if rec, ok := c.currentRecord(); ok {
				c.store.Save(context.Background(), rec)
			}
		}
	}
}

func (c *Coordinator) currentRecord() (progress.Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.book == nil || c.delayActive {
		return progress.Record{}, false
	}
	return c.recordLocked(), true
}

// recordLocked builds the progress record for the current state.
// Caller holds the lock and guarantees a book is present.
func (c *Coordinator) recordLocked() progress.Record {
	return progress.Record{
		BookID:       c.book.ID,
		Position:     c.position,
		SegmentIndex: c.segment,
		Duration:     c.duration,
		SavedAt:      time.Now(),
	}
}

func (c *Coordinator) bumpGenLocked() uint64 {
	c.gen++
	return c.gen
}

func (c *Coordinator) snapshotLocked() Snapshot {
	s := Snapshot{
		State:    c.stateLocked(),
		Position: c.position,
		Duration: c.duration,
	}
	if c.book != nil {
		s.BookID = c.book.ID
		s.BookTitle = c.book.Title
		s.Segment = c.segment
		s.SegmentCount = len(c.book.Segments)
		if c.book.ValidIndex(c.segment) {
			s.SegmentName = c.book.Segments[c.segment].Name
		}
	}
	if c.delayActive {
		s.Delay = DelayInfo{
			Active:    true,
			StartedAt: c.delayStarted,
			Minutes:   c.delayMinutes,
			FireAt:    c.delayStarted.Add(time.Duration(c.delayMinutes) * time.Minute),
		}
		if c.delayBook != nil {
			s.BookID = c.delayBook.ID
			s.BookTitle = c.delayBook.Title
			s.SegmentCount = len(c.delayBook.Segments)
		}
	}
	return s
}

func (c *Coordinator) stateLocked() State {
	switch {
	case c.delayActive:
		return StateDelayPending
	case c.book == nil:
		return StateEmpty
	case c.loading:
		return StateLoading
	case c.finished:
		return StateFinished
	case c.playing:
		return StatePlaying
	default:
		return StatePaused
	}
}

func (c *Coordinator) notify() {
	snap := c.Snapshot()
	c.subsMu.RLock()
	for _, sub := range c.subs {
		sub.send(snap)
	}
	c.subsMu.RUnlock()
}
