package progress

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Remote is the authoritative tier of the store.
type Remote interface {
	SaveProgress(ctx context.Context, rec Record) error
	GetProgress(ctx context.Context, bookID string) (*Record, error)
	ResetProgress(ctx context.Context, bookID string) error
	MarkComplete(ctx context.Context, bookID string) error
}

// Verify Client implements Remote at compile time.
var _ Remote = (*Client)(nil)

// Store is the dual-tier progress store: remote authoritative, local
// fallback. Write failures are logged, never propagated; playback is
// never blocked by persistence.
type Store struct {
	remote Remote
	cache  *Cache
	log    zerolog.Logger

	mu       sync.Mutex
	inFlight map[string]bool
}

// NewStore creates a store over the given tiers. remote may be nil when
// no backend is configured; the store then runs cache-only.
func NewStore(remote Remote, cache *Cache, log zerolog.Logger) *Store {
	return &Store{
		remote:   remote,
		cache:    cache,
		log:      log,
		inFlight: make(map[string]bool),
	}
}

// Save persists rec to the remote store first, then always to the local
// cache; the cache write never depends on remote success. At most one
// save per book runs at a time: a save arriving while one is in flight
// for the same book is skipped (the autosave loop retries shortly with
// fresher data).
func (s *Store) Save(ctx context.Context, rec Record) {
	rec.normalize()
	if rec.SavedAt.IsZero() {
		rec.SavedAt = time.Now()
	}

	s.mu.Lock()
	if s.inFlight[rec.BookID] {
		s.mu.Unlock()
		s.log.Debug().Str("book_id", rec.BookID).Msg("save already in flight, skipping")
		return
	}
	s.inFlight[rec.BookID] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.inFlight, rec.BookID)
		s.mu.Unlock()
	}()

	if s.remote != nil {
		if err := s.remote.SaveProgress(ctx, rec); err != nil {
			s.log.Warn().Err(err).Str("book_id", rec.BookID).Msg("remote progress save failed")
		}
	}

	if err := s.cache.Save(rec); err != nil {
		s.log.Warn().Err(err).Str("book_id", rec.BookID).Msg("local progress save failed")
	}
}

// Load returns the stored position for bookID, preferring the remote
// tier and falling back to the local cache on any failure or absence.
// It returns nil when neither tier has a record; resuming from zero is
// always a valid fallback, so Load never fails the caller.
func (s *Store) Load(ctx context.Context, bookID string) *Record {
	if s.remote != nil {
		rec, err := s.remote.GetProgress(ctx, bookID)
		if err == nil {
			return rec
		}
		if !errors.Is(err, ErrNotFound) {
			s.log.Warn().Err(err).Str("book_id", bookID).Msg("remote progress read failed, using cache")
		}
	}

	rec, err := s.cache.Get(bookID)
	if err != nil {
		s.log.Warn().Err(err).Str("book_id", bookID).Msg("local progress read failed")
		return nil
	}
	return rec
}

// Reset deletes the stored position from both tiers. Already-absent
// records are success; tier failures are joined into the returned error
// but each tier is always attempted.
func (s *Store) Reset(ctx context.Context, bookID string) error {
	var remoteErr error
	if s.remote != nil {
		remoteErr = s.remote.ResetProgress(ctx, bookID)
		if remoteErr != nil {
			s.log.Warn().Err(remoteErr).Str("book_id", bookID).Msg("remote progress reset failed")
		}
	}

	localErr := s.cache.Delete(bookID)
	if localErr != nil {
		s.log.Warn().Err(localErr).Str("book_id", bookID).Msg("local progress reset failed")
	}

	return errors.Join(remoteErr, localErr)
}

// MarkComplete flags the book finished on the remote tier, best effort.
func (s *Store) MarkComplete(ctx context.Context, bookID string) {
	if s.remote == nil {
		return
	}
	if err := s.remote.MarkComplete(ctx, bookID); err != nil {
		s.log.Warn().Err(err).Str("book_id", bookID).Msg("mark complete failed")
	}
}
