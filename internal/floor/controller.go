package floor

import (
	"sync"
	"time"
)

// Controller is the floor-control state machine's public contract. The
// default in-memory implementation below is the one this repository
// wires up; spec 9 calls the interface out explicitly so an embedder
// wanting convener delegation can substitute a Controller that forwards
// requestFloor/yieldFloor to an external agent while preserving these
// same invariants.
type Controller interface {
	RequestFloor(conv, speakerURI string, priority int, reason string, now time.Time) Result
	YieldFloor(conv, speakerURI string, now time.Time) Result
	RevokeFloor(conv, targetURI, reason string, now time.Time) Result
	CheckTimeouts(now time.Time) []TimeoutResult
	PeekHolder(conv string) (string, bool)
	PeekQueue(conv string) []Request
	Forget(conv string)
	// Restore seeds conv's holder and pending queue directly, bypassing
	// ordinary admission (spec 9's persistence collaborator: a Store
	// adapter replays a saved snapshot through this before the Hub
	// resumes processing envelopes). Each queued entry is inserted at its
	// priority-ordered position, so queue need not be pre-sorted.
	Restore(conv, holder string, queue []Request, now time.Time)
}

// TimeoutResult pairs a conversation ID with the revoke Result produced
// by CheckTimeouts firing on that conversation's grant.
type TimeoutResult struct {
	ConversationID string
	Result         Result
}

// Config bounds the default Controller's behavior (spec 6.1).
type Config struct {
	// MaxQueueDepth bounds a conversation's pending request queue.
	// Zero means use the spec default of 128.
	MaxQueueDepth int
	// DefaultGrantTimeout, if non-zero, revokes an un-yielded grant after
	// this long. Zero means no timeout.
	DefaultGrantTimeout time.Duration
}

const defaultMaxQueueDepth = 128

type conversationState struct {
	mu        sync.Mutex
	holder    string
	grantedAt time.Time
	hasHolder bool
	queue     requestQueue
}

// DefaultController is the minimal in-memory Controller described by
// spec 4.2: one IDLE/GRANTED state machine and one priority queue per
// conversation, no I/O, no external delegation.
type DefaultController struct {
	cfg Config

	mu    sync.RWMutex
	convs map[string]*conversationState
}

// NewDefaultController constructs a Controller with the given bounds.
func NewDefaultController(cfg Config) *DefaultController {
	if cfg.MaxQueueDepth <= 0 {
		cfg.MaxQueueDepth = defaultMaxQueueDepth
	}
	return &DefaultController{cfg: cfg, convs: make(map[string]*conversationState)}
}

func (c *DefaultController) stateFor(conv string) *conversationState {
	c.mu.RLock()
	cs, ok := c.convs[conv]
	c.mu.RUnlock()
	if ok {
		return cs
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cs, ok = c.convs[conv]; ok {
		return cs
	}
	cs = &conversationState{}
	c.convs[conv] = cs
	return cs
}

// Forget drops all state for conv. Safe to call whenever the conversation
// is IDLE with an empty queue; disposal is optional (spec 3.2) so callers
// decide when, if ever, to call this.
func (c *DefaultController) Forget(conv string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.convs, conv)
}

// RequestFloor implements spec 4.2's requestFloor operation.
func (c *DefaultController) RequestFloor(conv, speakerURI string, priority int, reason string, now time.Time) Result {
	cs := c.stateFor(conv)
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if !cs.hasHolder {
		cs.holder = speakerURI
		cs.hasHolder = true
		cs.grantedAt = now
		return Result{Outcome: Granted, NewHolder: speakerURI, Changed: true}
	}

	if speakerURI == cs.holder {
		// Idempotent: already holds the floor, no state change (spec 8.1 invariant 4).
		return Result{Outcome: Granted, NewHolder: speakerURI}
	}

	req := Request{SpeakerURI: speakerURI, Priority: priority, EnqueuedAt: now, Reason: reason}

	if cs.queue.indexOf(speakerURI) < 0 && cs.queue.len() >= c.cfg.MaxQueueDepth {
		cs.queue.upsert(req)
		evicted, _ := cs.queue.evictTail()
		if evicted.SpeakerURI == speakerURI {
			return Result{Outcome: Overflow}
		}
		// The admitted request itself displaced another entry;
		// report the admission, the displaced entry simply vanishes.
		pos := cs.queue.indexOf(speakerURI)
		return Result{Outcome: Queued, QueuePos: pos}
	}

	pos := cs.queue.upsert(req)
	return Result{Outcome: Queued, QueuePos: pos}
}

// YieldFloor implements spec 4.2's yieldFloor operation.
func (c *DefaultController) YieldFloor(conv, speakerURI string, now time.Time) Result {
	cs := c.stateFor(conv)
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return c.releaseLocked(cs, speakerURI, now)
}

// RevokeFloor implements spec 4.2's revokeFloor operation. Unlike
// YieldFloor, the caller is the Hub (not necessarily the current
// holder); revoking a speaker that does not hold the floor is a no-op
// beyond removing any queued request of theirs, since there is nothing
// to revoke.
func (c *DefaultController) RevokeFloor(conv, targetURI string, reason string, now time.Time) Result {
	cs := c.stateFor(conv)
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.hasHolder && cs.holder == targetURI {
		return c.releaseLocked(cs, targetURI, now)
	}
	cs.queue.removeBySpeaker(targetURI)
	return Result{Outcome: NotHolder}
}

// releaseLocked clears the current holder (if speakerURI matches),
// promotes the next queued request if any, and reports the outcome.
// Caller must hold cs.mu.
func (c *DefaultController) releaseLocked(cs *conversationState, speakerURI string, now time.Time) Result {
	if !cs.hasHolder || cs.holder != speakerURI {
		return Result{Outcome: NotHolder}
	}

	prev := cs.holder
	cs.hasHolder = false
	cs.holder = ""

	next, ok := cs.queue.popHead()
	if !ok {
		return Result{Outcome: Granted, PrevHolder: prev, Changed: true}
	}

	cs.holder = next.SpeakerURI
	cs.hasHolder = true
	cs.grantedAt = now
	return Result{Outcome: Granted, NewHolder: next.SpeakerURI, PrevHolder: prev, Changed: true}
}

// CheckTimeouts implements spec 4.2's checkTimeouts sweep. It is the
// Controller's only operation that inspects every conversation at once;
// each conversation's own mutex still serializes it against concurrent
// requestFloor/yieldFloor/revokeFloor calls on that conversation.
func (c *DefaultController) CheckTimeouts(now time.Time) []TimeoutResult {
	if c.cfg.DefaultGrantTimeout <= 0 {
		return nil
	}

	c.mu.RLock()
	convIDs := make([]string, 0, len(c.convs))
	states := make([]*conversationState, 0, len(c.convs))
	for id, cs := range c.convs {
		convIDs = append(convIDs, id)
		states = append(states, cs)
	}
	c.mu.RUnlock()

	var fired []TimeoutResult
	for i, cs := range states {
		cs.mu.Lock()
		expired := cs.hasHolder && !cs.grantedAt.IsZero() && now.Sub(cs.grantedAt) >= c.cfg.DefaultGrantTimeout
		var res Result
		if expired {
			res = c.releaseLocked(cs, cs.holder, now)
		}
		cs.mu.Unlock()

		if expired {
			fired = append(fired, TimeoutResult{ConversationID: convIDs[i], Result: res})
		}
	}
	return fired
}

// Restore seeds conv's holder and queue from a previously saved
// snapshot. It is meant to run once, before the conversation has ever
// been touched by RequestFloor/YieldFloor — it does not merge with or
// validate against existing state.
func (c *DefaultController) Restore(conv, holder string, queue []Request, now time.Time) {
	cs := c.stateFor(conv)
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if holder != "" {
		cs.holder = holder
		cs.hasHolder = true
		cs.grantedAt = now
	}
	for _, req := range queue {
		cs.queue.upsert(req)
	}
}

// PeekHolder returns the current holder, if any.
func (c *DefaultController) PeekHolder(conv string) (string, bool) {
	cs := c.stateFor(conv)
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if !cs.hasHolder {
		return "", false
	}
	return cs.holder, true
}

// PeekQueue returns a snapshot of the pending queue, ordered per spec
// 8.1 invariant 2.
func (c *DefaultController) PeekQueue(conv string) []Request {
	cs := c.stateFor(conv)
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.queue.snapshot()
}
