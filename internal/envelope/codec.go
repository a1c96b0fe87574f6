package envelope

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// wireEnvelope mirrors the OFP 1.1.0 JSON shape described in spec 6.2.
// Field order here matches the order fields are documented in the wire
// format so Encode produces output a human reading the spec would
// recognize immediately.
type wireEnvelope struct {
	Schema       wireSchema       `json:"schema"`
	Conversation wireConversation `json:"conversation"`
	Sender       wireSender       `json:"sender"`
	Events       []wireEvent      `json:"events"`
}

// wireWrapped is the historical "openFloor"-wrapped form some 1.0.x
// fixtures use. The codec accepts it on input for back-compat (spec 9)
// but never emits it unless explicitly configured to.
type wireWrapped struct {
	OpenFloor *wireEnvelope `json:"openFloor"`
}

type wireSchema struct {
	Version string `json:"version"`
	URL     string `json:"url,omitempty"`
}

type wireSender struct {
	SpeakerURI string `json:"speakerUri"`
	ServiceURL string `json:"serviceUrl,omitempty"`
}

type wireIdentification struct {
	SpeakerURI string `json:"speakerUri,omitempty"`
	ServiceURL string `json:"serviceUrl,omitempty"`
	Conversant string `json:"conversant,omitempty"`

	// PersistentState is accepted on input for interop with agents that
	// send it, but is never copied into the in-memory Identification and
	// therefore never re-emitted (spec 4.1).
	PersistentState json.RawMessage `json:"persistentState,omitempty"`
}

type wireConversant struct {
	Identification wireIdentification `json:"identification"`
}

type wireConversation struct {
	ID                 string              `json:"id"`
	Conversants        []wireConversant    `json:"conversants,omitempty"`
	AssignedFloorRoles map[string][]string `json:"assignedFloorRoles,omitempty"`
	FloorGranted       []string            `json:"floorGranted,omitempty"`
}

type wireTo struct {
	SpeakerURI string `json:"speakerUri,omitempty"`
	ServiceURL string `json:"serviceUrl,omitempty"`
	Private    bool   `json:"private,omitempty"`
}

type wireEvent struct {
	EventType  string                 `json:"eventType"`
	To         *wireTo                `json:"to,omitempty"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
	Reason     string                 `json:"reason,omitempty"`
}

// Decode parses raw JSON bytes into a validated Envelope. allowedVersions
// is the hub's configured set of acceptable schema.version strings (spec
// 6.1's supportedSchemaVersions); an empty set means only SchemaVersion is
// accepted.
//
// Decode accepts both the bare top-level object and the historical
// "openFloor"-wrapped form (spec 9).
func Decode(data []byte, allowedVersions map[string]bool) (*Envelope, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, &MalformedError{Field: "<root>", Reason: err.Error()}
	}

	raw := data
	if wrapped, ok := probe["openFloor"]; ok {
		raw = wrapped
	}

	var w wireEnvelope
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&w); err != nil {
		// DisallowUnknownFields rejects typos in required-field names as
		// well as genuinely unknown fields, which is the behavior spec
		// 4.1 wants for "wrong type" / structural errors.
		return nil, &MalformedError{Field: "<root>", Reason: err.Error()}
	}

	if w.Schema.Version == "" {
		return nil, &MalformedError{Field: "schema.version", Reason: "required"}
	}
	if len(allowedVersions) == 0 {
		allowedVersions = map[string]bool{SchemaVersion: true}
	}
	if !allowedVersions[w.Schema.Version] {
		allowed := make([]string, 0, len(allowedVersions))
		for v := range allowedVersions {
			allowed = append(allowed, v)
		}
		return nil, &UnsupportedSchemaError{Version: w.Schema.Version, Allowed: allowed}
	}

	if w.Conversation.ID == "" {
		return nil, &MalformedError{Field: "conversation.id", Reason: "required"}
	}
	if w.Sender.SpeakerURI == "" {
		return nil, &MalformedError{Field: "sender.speakerUri", Reason: "required"}
	}
	if len(w.Events) == 0 {
		return nil, &MalformedError{Field: "events", Reason: "must be non-empty"}
	}

	events := make([]Event, len(w.Events))
	for i, we := range w.Events {
		et := EventType(we.EventType)
		if !knownEventTypes[et] {
			return nil, &MalformedError{Field: fmt.Sprintf("events[%d].eventType", i), Reason: fmt.Sprintf("unknown event type %q", we.EventType)}
		}
		var to *To
		if we.To != nil {
			to = &To{SpeakerURI: we.To.SpeakerURI, ServiceURL: we.To.ServiceURL, Private: we.To.Private}
		}
		events[i] = Event{EventType: et, To: to, Parameters: we.Parameters, Reason: we.Reason}
	}

	conversants := make([]Conversant, len(w.Conversation.Conversants))
	for i, wc := range w.Conversation.Conversants {
		// wc.Identification.PersistentState is intentionally left unread:
		// it must not survive into the in-memory record (spec 4.1).
		conversants[i] = Conversant{Identification: Identification{
			SpeakerURI: wc.Identification.SpeakerURI,
			ServiceURL: wc.Identification.ServiceURL,
			Conversant: wc.Identification.Conversant,
		}}
	}

	return &Envelope{
		Schema:       Schema{Version: w.Schema.Version, URL: w.Schema.URL},
		Conversation: Conversation{
			ID:                 w.Conversation.ID,
			Conversants:        conversants,
			AssignedFloorRoles: w.Conversation.AssignedFloorRoles,
			FloorGranted:       w.Conversation.FloorGranted,
		},
		Sender: Sender{SpeakerURI: w.Sender.SpeakerURI, ServiceURL: w.Sender.ServiceURL},
		Events: events,
	}, nil
}

// EncodeOptions controls the wrapper form Encode emits.
type EncodeOptions struct {
	// EmitWrapped wraps the output under "openFloor" for interop with
	// older consumers (spec 9's open question). Default: false.
	EmitWrapped bool
}

// Encode produces the canonical JSON representation of e: bare by
// default, wrapped if opts requests it. Optional fields that are unset
// are omitted.
func Encode(e *Envelope, opts EncodeOptions) ([]byte, error) {
	w := toWire(e)
	if opts.EmitWrapped {
		return json.Marshal(wireWrapped{OpenFloor: &w})
	}
	return json.Marshal(w)
}

func toWire(e *Envelope) wireEnvelope {
	events := make([]wireEvent, len(e.Events))
	for i, ev := range e.Events {
		var to *wireTo
		if ev.To != nil {
			to = &wireTo{SpeakerURI: ev.To.SpeakerURI, ServiceURL: ev.To.ServiceURL, Private: ev.To.Private}
		}
		events[i] = wireEvent{EventType: string(ev.EventType), To: to, Parameters: ev.Parameters, Reason: ev.Reason}
	}

	conversants := make([]wireConversant, len(e.Conversation.Conversants))
	for i, c := range e.Conversation.Conversants {
		conversants[i] = wireConversant{Identification: wireIdentification{
			SpeakerURI: c.Identification.SpeakerURI,
			ServiceURL: c.Identification.ServiceURL,
			Conversant: c.Identification.Conversant,
		}}
	}

	return wireEnvelope{
		Schema:       wireSchema{Version: e.Schema.Version, URL: e.Schema.URL},
		Conversation: wireConversation{
			ID:                 e.Conversation.ID,
			Conversants:        conversants,
			AssignedFloorRoles: e.Conversation.AssignedFloorRoles,
			FloorGranted:       e.Conversation.FloorGranted,
		},
		Sender: wireSender{SpeakerURI: e.Sender.SpeakerURI, ServiceURL: e.Sender.ServiceURL},
		Events: events,
	}
}
