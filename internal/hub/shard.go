package hub

import (
	"github.com/cespare/xxhash/v2"
)

// sharder assigns each conversation ID to one of a fixed number of
// lanes, giving the Hub a concrete mechanism for spec 5's requirement
// that every operation touching a given conversation be serialized on a
// per-conversation logical queue, without paying for a goroutine and
// channel per conversation and without a single global lock that would
// serialize unrelated conversations against each other.
//
// The hash is stable: the same conversation ID always maps to the same
// lane for the lifetime of the process, so sequencing per
// (conversation, destination) is preserved even as envelopes for
// different conversations interleave across lanes.
type sharder struct {
	lanes []chan func()
	done  chan struct{}
}

// newSharder starts n worker goroutines, each draining its own lane of
// queued closures in order.
func newSharder(n int) *sharder {
	if n <= 0 {
		n = 1
	}
	s := &sharder{lanes: make([]chan func(), n), done: make(chan struct{})}
	for i := range s.lanes {
		lane := make(chan func(), 256)
		s.lanes[i] = lane
		go s.run(lane)
	}
	return s
}

func (s *sharder) run(lane chan func()) {
	for {
		select {
		case fn, ok := <-lane:
			if !ok {
				return
			}
			fn()
		case <-s.done:
			return
		}
	}
}

// submit runs fn on the lane owned by conversationID. fn runs on the
// lane's single worker goroutine, so everything it does delays later
// closures queued on the same lane. The closure ProcessEnvelope submits
// includes the Router's delivery, so registered handlers are invoked on
// the lane; they are not deferred until after the lane's work returns.
func (s *sharder) submit(conversationID string, fn func()) {
	lane := s.lanes[s.laneIndex(conversationID)]
	lane <- fn
}

// submitSync runs fn on conversationID's lane and blocks until it
// completes, returning fn's result. Used by processEnvelope, which must
// return its Result synchronously to the caller.
func submitSync[T any](s *sharder, conversationID string, fn func() T) T {
	resultCh := make(chan T, 1)
	s.submit(conversationID, func() {
		resultCh <- fn()
	})
	return <-resultCh
}

func (s *sharder) laneIndex(conversationID string) uint64 {
	return xxhash.Sum64String(conversationID) % uint64(len(s.lanes))
}

// close stops all lane workers. Queued-but-not-yet-run closures are
// abandoned; callers must not be relying on in-flight work after close.
func (s *sharder) close() {
	close(s.done)
}
