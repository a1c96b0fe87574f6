package hub

import (
	"sync"

	"github.com/openfloor-hub/floorhub/internal/envelope"
)

// conversationRegistry owns the per-conversation metadata the Hub
// maintains outside of the Floor Controller: conversants and
// assignedFloorRoles (spec 3.1). floorGranted is derived from the
// Controller at read time rather than stored independently, so the two
// can never drift apart (spec 4.3's metadata coherence invariant).
type conversationRegistry struct {
	mu    sync.Mutex
	convs map[string]*conversationMeta
}

type conversationMeta struct {
	conversants        []envelope.Conversant
	assignedFloorRoles map[string][]string
}

func newConversationRegistry() *conversationRegistry {
	return &conversationRegistry{convs: make(map[string]*conversationMeta)}
}

func (r *conversationRegistry) get(id string) *conversationMeta {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.convs[id]
	if !ok {
		m = &conversationMeta{assignedFloorRoles: make(map[string][]string)}
		r.convs[id] = m
	}
	return m
}

// reconcile merges conversants/assignedFloorRoles present on an inbound
// envelope into the local record. Local state is authoritative for
// floorGranted (never touched here); unknown role names are preserved
// verbatim (spec 4.1).
func (r *conversationRegistry) reconcile(id string, conv envelope.Conversation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.convs[id]
	if !ok {
		m = &conversationMeta{assignedFloorRoles: make(map[string][]string)}
		r.convs[id] = m
	}

	if len(conv.Conversants) > 0 {
		m.conversants = mergeConversants(m.conversants, conv.Conversants)
	}
	for role, uris := range conv.AssignedFloorRoles {
		if role == envelope.ConvenerRole {
			m.assignedFloorRoles[role] = uris
			continue
		}
		// Unknown role names are preserved verbatim, per spec 4.1.
		m.assignedFloorRoles[role] = uris
	}
}

func mergeConversants(existing, incoming []envelope.Conversant) []envelope.Conversant {
	seen := make(map[string]bool, len(existing))
	out := make([]envelope.Conversant, len(existing))
	copy(out, existing)
	for _, c := range existing {
		seen[c.Identification.SpeakerURI] = true
	}
	for _, c := range incoming {
		if !seen[c.Identification.SpeakerURI] {
			out = append(out, c)
			seen[c.Identification.SpeakerURI] = true
		}
	}
	return out
}

// addConversant mirrors an invite into the conversants record (spec 4.3,
// 9). uninvite removes the entry.
func (r *conversationRegistry) addConversant(id, speakerURI string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.convs[id]
	if m == nil {
		m = &conversationMeta{assignedFloorRoles: make(map[string][]string)}
		r.convs[id] = m
	}
	for _, c := range m.conversants {
		if c.Identification.SpeakerURI == speakerURI {
			return
		}
	}
	m.conversants = append(m.conversants, envelope.Conversant{Identification: envelope.Identification{SpeakerURI: speakerURI}})
}

func (r *conversationRegistry) removeConversant(id, speakerURI string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.convs[id]
	if m == nil {
		return
	}
	out := m.conversants[:0]
	for _, c := range m.conversants {
		if c.Identification.SpeakerURI != speakerURI {
			out = append(out, c)
		}
	}
	m.conversants = out
}

// snapshot returns the conversation's conversants and assignedFloorRoles
// for use when building outbound/reconciled Conversation records.
func (r *conversationRegistry) snapshot(id string) ([]envelope.Conversant, map[string][]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.convs[id]
	if !ok {
		return nil, nil
	}
	roles := make(map[string][]string, len(m.assignedFloorRoles))
	for k, v := range m.assignedFloorRoles {
		roles[k] = v
	}
	conversants := make([]envelope.Conversant, len(m.conversants))
	copy(conversants, m.conversants)
	return conversants, roles
}

// ids returns every conversation id the registry currently holds
// metadata for, in no particular order.
func (r *conversationRegistry) ids() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.convs))
	for id := range r.convs {
		out = append(out, id)
	}
	return out
}

// setMeta overwrites id's conversants/assignedFloorRoles wholesale, used
// by RestoreConversation to seed metadata from a saved snapshot before
// the conversation has been touched by any envelope.
func (r *conversationRegistry) setMeta(id string, conversants []envelope.Conversant, roles map[string][]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if roles == nil {
		roles = make(map[string][]string)
	}
	r.convs[id] = &conversationMeta{conversants: conversants, assignedFloorRoles: roles}
}

// forget drops the registry's record for id. Nothing in the Hub calls
// it (nor floor.Controller.Forget), so conversation records are kept for
// the Hub's lifetime; disposal is optional (spec 3.2).
func (r *conversationRegistry) forget(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.convs, id)
}
