package hub

import (
	"github.com/openfloor-hub/floorhub/internal/envelope"
	"github.com/openfloor-hub/floorhub/internal/floor"
	"github.com/openfloor-hub/floorhub/internal/router"
)

// ControllerOutcome records what a single floor event produced, so
// callers can inspect per-event admission results (Overflow, NotHolder,
// ...) without re-deriving them from the delivered envelopes.
type ControllerOutcome struct {
	EventIndex int
	EventType  envelope.EventType
	SpeakerURI string
	Outcome    floor.Outcome
}

// Result is the aggregate outcome of one processEnvelope call (spec
// 6.4's embedding interface).
type Result struct {
	Outbound           []*envelope.Envelope
	Deliveries         []router.Outcome
	ControllerOutcomes []ControllerOutcome
}
