// Package envelope provides the Open Floor Protocol 1.1.0 message structure
// exchanged between the hub and the agents connected to it.
//
// An Envelope is the unit of transport: one JSON object carrying a sender
// identity, a conversation reference, and an ordered, non-empty sequence of
// events. Envelope values are treated as immutable after construction; the
// codec in codec.go is the only place that builds or mutates one from wire
// bytes.
package envelope

import "time"

// SchemaVersion is the OFP schema version this package understands natively.
const SchemaVersion = "1.1.0"

// ConvenerRole is the only assignedFloorRoles role name the hub interprets.
// Unknown role names are preserved verbatim on pass-through (spec 4.1).
const ConvenerRole = "convener"

// EventType enumerates the event kinds defined by spec 6.2.
type EventType string

const (
	EventRequestFloor     EventType = "requestFloor"
	EventGrantFloor       EventType = "grantFloor"
	EventRevokeFloor      EventType = "revokeFloor"
	EventYieldFloor       EventType = "yieldFloor"
	EventUtterance        EventType = "utterance"
	EventContext          EventType = "context"
	EventInvite           EventType = "invite"
	EventUninvite         EventType = "uninvite"
	EventAcceptInvite     EventType = "acceptInvite"
	EventDeclineInvite    EventType = "declineInvite"
	EventBye              EventType = "bye"
	EventGetManifests     EventType = "getManifests"
	EventPublishManifests EventType = "publishManifests"
)

// floorEventTypes are handled by the Floor Controller; everything else is
// pass-through as far as the Hub's state machine is concerned.
var floorEventTypes = map[EventType]bool{
	EventRequestFloor: true,
	EventGrantFloor:   true,
	EventRevokeFloor:  true,
	EventYieldFloor:   true,
}

// IsFloorEvent reports whether eventType is one of the four floor-control
// primitives (spec 4.3 step 2).
func IsFloorEvent(t EventType) bool {
	return floorEventTypes[t]
}

// knownEventTypes is used by the codec to reject malformed enum values.
var knownEventTypes = map[EventType]bool{
	EventRequestFloor: true, EventGrantFloor: true, EventRevokeFloor: true, EventYieldFloor: true,
	EventUtterance: true, EventContext: true,
	EventInvite: true, EventUninvite: true, EventAcceptInvite: true, EventDeclineInvite: true, EventBye: true,
	EventGetManifests: true, EventPublishManifests: true,
}

// Schema identifies the protocol version an envelope was produced against.
type Schema struct {
	Version string // required, must be in the hub's supported set
	URL     string // optional, informational
}

// Sender identifies the agent that produced an envelope. SpeakerURI is the
// only identity the hub ever relies on; ServiceURL is informational.
type Sender struct {
	SpeakerURI string
	ServiceURL string
}

// Identification is an opaque conversant identity record. PersistentState,
// if present on an inbound envelope, is dropped before re-emission (spec 4.1)
// and is therefore not represented here at all.
type Identification struct {
	SpeakerURI  string
	ServiceURL  string
	Conversant  string // free-form display/identification payload, passed through verbatim
}

// Conversant is a participant identification record; the hub stores no
// per-agent state beyond this.
type Conversant struct {
	Identification Identification
}

// Conversation carries the mutable per-conversation metadata required by
// OFP. ID is chosen once, by whichever envelope first mentions it, and never
// changes afterward.
type Conversation struct {
	ID                 string
	Conversants        []Conversant
	AssignedFloorRoles map[string][]string // role name -> speaker URIs; only "convener" is hub-understood
	FloorGranted       []string            // at most one entry in the core's minimal semantics
}

// To describes an event's recipient, if any. A nil *To means broadcast.
type To struct {
	SpeakerURI string
	ServiceURL string
	Private    bool
}

// Event is one typed action carried inside an envelope.
type Event struct {
	EventType  EventType
	To         *To
	Parameters map[string]interface{}
	Reason     string
}

// Envelope is one inbound or outbound OFP message.
type Envelope struct {
	Schema       Schema
	Conversation Conversation
	Sender       Sender
	Events       []Event
}

// FloorGrantedParameters is the well-known shape of a grantFloor event's
// parameters bag, as synthesized by the hub (spec 4.3).
type FloorGrantedParameters struct {
	GrantedAt time.Time
}
