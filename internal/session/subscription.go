package session

const snapshotBufferSize = 16

// Subscription delivers session snapshots to one subscriber.
type Subscription struct {
	Snapshots <-chan Snapshot
	Done      <-chan struct{}

	snapCh chan Snapshot
	doneCh chan struct{}
}

// newSubscription creates a subscription with a buffered snapshot channel.
func newSubscription() *Subscription {
	s := &Subscription{
		snapCh: make(chan Snapshot, snapshotBufferSize),
		doneCh: make(chan struct{}),
	}
	s.Snapshots = s.snapCh
	s.Done = s.doneCh
	return s
}

// send delivers a snapshot without blocking; stale snapshots are dropped
// when the subscriber lags.
func (s *Subscription) send(snap Snapshot) {
	select {
	case s.snapCh <- snap:
	default:
	}
}

// close signals the subscriber to stop.
func (s *Subscription) close() {
	close(s.doneCh)
}
