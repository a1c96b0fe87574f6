package floor

// requestQueue is the ordered list of pending Requests for one
// conversation. Order is strictly (−priority, enqueuedAt); ties on both
// keys are broken by insertion order (spec 3.1, 8.1 invariant 2).
//
// A plain slice is used rather than container/heap: conversations are
// expected to carry a handful of pending requests at a time, dedup-by-
// speaker and arbitrary-position removal are simpler to reason about
// on a slice, and maxQueueDepth bounds it well below where a heap would
// start to matter.
type requestQueue struct {
	items []Request
}

// less reports whether a should sort before b under the queue's total
// order. Equal priority and timestamp falls back to insertion order,
// which callers preserve by never reordering items with equal keys.
func less(a, b Request) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.EnqueuedAt.Before(b.EnqueuedAt)
}

// indexOf returns the index of the request from speakerURI, or -1.
func (q *requestQueue) indexOf(speakerURI string) int {
	for i, r := range q.items {
		if r.SpeakerURI == speakerURI {
			return i
		}
	}
	return -1
}

// insert places r into sorted position, maintaining insertion order for
// ties. It assumes speakerURI is not already present; callers must check
// via indexOf / upsert first.
func (q *requestQueue) insert(r Request) int {
	pos := len(q.items)
	for i, existing := range q.items {
		if less(r, existing) {
			pos = i
			break
		}
	}
	q.items = append(q.items, Request{})
	copy(q.items[pos+1:], q.items[pos:])
	q.items[pos] = r
	return pos
}

// upsert admits r, or updates the existing entry for the same speaker in
// place (priority becomes max(old, new); timestamp is not reset, per
// spec 3.1's FloorRequest invariant). Returns the resulting position.
func (q *requestQueue) upsert(r Request) int {
	if idx := q.indexOf(r.SpeakerURI); idx >= 0 {
		existing := q.items[idx]
		if r.Priority > existing.Priority {
			existing.Priority = r.Priority
		}
		if r.Reason != "" {
			existing.Reason = r.Reason
		}
		q.items = append(q.items[:idx], q.items[idx+1:]...)
		return q.insert(existing)
	}
	return q.insert(r)
}

// removeBySpeaker deletes the entry for speakerURI, if present, and
// reports whether one was removed.
func (q *requestQueue) removeBySpeaker(speakerURI string) bool {
	idx := q.indexOf(speakerURI)
	if idx < 0 {
		return false
	}
	q.items = append(q.items[:idx], q.items[idx+1:]...)
	return true
}

// popHead removes and returns the highest-priority (earliest-enqueued on
// ties) request, if any.
func (q *requestQueue) popHead() (Request, bool) {
	if len(q.items) == 0 {
		return Request{}, false
	}
	head := q.items[0]
	q.items = q.items[1:]
	return head, true
}

// evictTail removes the lowest-priority (earliest-enqueued on ties) entry,
// used when admission would exceed maxQueueDepth (spec 4.2, 7.3). The
// lowest-priority entries form the tail of the queue, so the victim is
// the first entry of that tail run.
func (q *requestQueue) evictTail() (Request, bool) {
	if len(q.items) == 0 {
		return Request{}, false
	}
	idx := len(q.items) - 1
	for idx > 0 && q.items[idx-1].Priority == q.items[idx].Priority {
		idx--
	}
	evicted := q.items[idx]
	q.items = append(q.items[:idx], q.items[idx+1:]...)
	return evicted, true
}

// snapshot returns a defensive copy of the queue contents for read-only
// introspection (spec 4.2 peekQueue).
func (q *requestQueue) snapshot() []Request {
	out := make([]Request, len(q.items))
	copy(out, q.items)
	return out
}

func (q *requestQueue) len() int { return len(q.items) }
