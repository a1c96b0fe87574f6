// Package floor implements the per-conversation floor-control state
// machine: admission, priority queueing, granting, yielding, revoking,
// and timeout enforcement (spec 4.2). It is entirely in-memory and does
// no I/O; every operation is a pure function of the controller's state
// plus its arguments.
package floor

import "time"

// Outcome is the result of a Controller admission/transition operation.
// The controller never panics or returns an error for ordinary sequencing
// issues (spec 4.2 "Failure semantics") — it always returns one of these.
type Outcome int

const (
	// Granted means the requester now holds the floor.
	Granted Outcome = iota
	// Queued means the request was admitted into the pending queue.
	// Position is 0-based queue index at the time of admission.
	Queued
	// Overflow means the queue was at capacity and the lowest-priority
	// (oldest, if tied) entry was evicted to admit this one.
	Overflow
	// NotHolder means a yieldFloor was issued by a speaker that does not
	// currently hold the floor; it is ignored.
	NotHolder
	// NoSuchConversation means the operation referenced a conversation
	// the controller has no record of (read-only accessors only).
	NoSuchConversation
)

func (o Outcome) String() string {
	switch o {
	case Granted:
		return "Granted"
	case Queued:
		return "Queued"
	case Overflow:
		return "Overflow"
	case NotHolder:
		return "NotHolder"
	case NoSuchConversation:
		return "NoSuchConversation"
	default:
		return "Unknown"
	}
}

// RevokeReason enumerates the typed revoke reasons spec 4.2 names
// explicitly; free text is also accepted and passed through verbatim.
const (
	ReasonTimeout  = "@timeout"
	ReasonOverride = "@override"
)

// Request is a pending floor request inside a conversation's queue.
// At most one Request per (conversation, SpeakerURI) exists at a time;
// a second request from the same speaker updates the existing entry in
// place: priority becomes the max of old and new, EnqueuedAt is
// unchanged (spec 3.1).
type Request struct {
	SpeakerURI string
	Priority   int
	EnqueuedAt time.Time
	Reason     string
}

// Result carries everything the Hub needs to react to a single
// Controller operation: the outcome, the new holder (if any changed),
// and the position a Queued request landed at.
type Result struct {
	Outcome    Outcome
	NewHolder  string // non-empty when a grant was produced (Granted, or promotion on yield/revoke)
	QueuePos   int    // valid when Outcome == Queued
	PrevHolder string // non-empty when a holder was cleared or replaced
	// Changed is false for the idempotent self-request case (spec 8.1
	// invariant 4): Outcome is still Granted, but no outbound envelope
	// should be synthesized because no state actually transitioned.
	Changed bool
}
