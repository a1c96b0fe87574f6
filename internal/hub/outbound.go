package hub

import (
	"time"

	"github.com/openfloor-hub/floorhub/internal/envelope"
)

// synthesizeGrant builds the grantFloor envelope the Hub emits when the
// Controller hands the floor to grantee (spec 4.3's "Outbound envelope
// shape"). sender is always the hub's own configured Speaker URI, never
// the grantee's, per spec 9's explicit correction of older fixtures.
func (h *Hub) synthesizeGrant(convID, grantee string, grantedAt time.Time, conversants []envelope.Conversant, roles map[string][]string) *envelope.Envelope {
	return &envelope.Envelope{
		Schema: envelope.Schema{Version: envelope.SchemaVersion},
		Conversation: envelope.Conversation{
			ID:                 convID,
			Conversants:        conversants,
			AssignedFloorRoles: roles,
			FloorGranted:       []string{grantee},
		},
		Sender: envelope.Sender{SpeakerURI: h.cfg.HubSpeakerURI},
		Events: []envelope.Event{{
			EventType: envelope.EventGrantFloor,
			To:        &envelope.To{SpeakerURI: grantee},
			Parameters: map[string]interface{}{
				"grantedAt": grantedAt.UTC().Format(time.RFC3339),
			},
		}},
	}
}

// synthesizeRevoke builds the revokeFloor envelope the Hub emits when it
// (not the agent) takes the floor away from target. Every revokeFloor
// envelope the Hub emits carries a reason parameter (spec 4.3).
func (h *Hub) synthesizeRevoke(convID, target, reason string, conversants []envelope.Conversant, roles map[string][]string, floorGranted []string) *envelope.Envelope {
	return &envelope.Envelope{
		Schema: envelope.Schema{Version: envelope.SchemaVersion},
		Conversation: envelope.Conversation{
			ID:                 convID,
			Conversants:        conversants,
			AssignedFloorRoles: roles,
			FloorGranted:       floorGranted,
		},
		Sender: envelope.Sender{SpeakerURI: h.cfg.HubSpeakerURI},
		Events: []envelope.Event{{
			EventType: envelope.EventRevokeFloor,
			To:        &envelope.To{SpeakerURI: target},
			Reason:    reason,
		}},
	}
}

// floorGrantedList returns the wire-format floorGranted list for a
// possibly-empty holder (spec 8.1 invariant 1).
func floorGrantedList(holder string, ok bool) []string {
	if !ok {
		return []string{}
	}
	return []string{holder}
}
