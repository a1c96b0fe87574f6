// Package floorstore implements the optional, pluggable persistence
// layer for conversation metadata (spec 9's open question on "should
// the hub ever persist state"). Neither the core (internal/hub) nor the
// public/floorhub façade imports this package or the Store interface;
// an embedder moves snapshots between a Store and a Manager itself via
// ConversationIDs/Conversation/Queue and RestoreConversation, as
// cmd/floorhubd does. An embedder that wants
// conversations to survive a restart constructs a Store and feeds it
// snapshots taken between ProcessEnvelope calls.
//
// This mirrors how cellorg's internal/storage is a concern the core
// dispatch loop never reaches into directly — agents that need
// persistence open a store themselves and use it through an interface.
package floorstore

import (
	"errors"

	"github.com/openfloor-hub/floorhub/internal/envelope"
	"github.com/openfloor-hub/floorhub/internal/floor"
)

// ErrNotFound is returned by Load when id has no saved snapshot.
var ErrNotFound = errors.New("floorstore: conversation not found")

// ConversationSnapshot is everything needed to restore one
// conversation's metadata and floor-control queue across a restart.
// It does not include registered routes (spec 3.1's delivery table is
// construction-time, in-memory-only state the embedder re-registers on
// startup).
type ConversationSnapshot struct {
	ID                 string
	Conversants        []envelope.Conversant
	AssignedFloorRoles map[string][]string
	Holder             string
	Queue              []floor.Request
}

// Store persists and restores ConversationSnapshot records, keyed by
// conversation id. Implementations must be safe for concurrent use.
type Store interface {
	Save(snap ConversationSnapshot) error
	Load(id string) (ConversationSnapshot, error)
	Delete(id string) error
	// List returns every conversation id with a saved snapshot.
	List() ([]string, error)
	Close() error
}
