package envelope

import (
	"encoding/json"
	"testing"
)

func decodeDefault(t *testing.T, data []byte) *Envelope {
	t.Helper()
	e, err := Decode(data, nil)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	return e
}

func TestDecodeBareMinimalRequestFloor(t *testing.T) {
	data := []byte(`{
		"schema": {"version": "1.1.0"},
		"conversation": {"id": "c1"},
		"sender": {"speakerUri": "urn:a:1"},
		"events": [{"eventType": "requestFloor", "parameters": {"priority": 0}}]
	}`)

	e := decodeDefault(t, data)
	if e.Conversation.ID != "c1" {
		t.Errorf("conversation id = %q, want c1", e.Conversation.ID)
	}
	if e.Sender.SpeakerURI != "urn:a:1" {
		t.Errorf("sender = %q", e.Sender.SpeakerURI)
	}
	if len(e.Events) != 1 || e.Events[0].EventType != EventRequestFloor {
		t.Fatalf("events = %+v", e.Events)
	}
}

func TestDecodeAcceptsOpenFloorWrapper(t *testing.T) {
	data := []byte(`{"openFloor": {
		"schema": {"version": "1.1.0"},
		"conversation": {"id": "c1"},
		"sender": {"speakerUri": "urn:a:1"},
		"events": [{"eventType": "bye"}]
	}}`)

	e := decodeDefault(t, data)
	if e.Conversation.ID != "c1" {
		t.Errorf("conversation id = %q", e.Conversation.ID)
	}
}

func TestDecodeRejectsMissingSpeakerURI(t *testing.T) {
	data := []byte(`{
		"schema": {"version": "1.1.0"},
		"conversation": {"id": "c1"},
		"sender": {},
		"events": [{"eventType": "bye"}]
	}`)

	_, err := Decode(data, nil)
	if !IsMalformed(err) {
		t.Fatalf("want MalformedError, got %v", err)
	}
}

func TestDecodeRejectsEmptyEvents(t *testing.T) {
	data := []byte(`{
		"schema": {"version": "1.1.0"},
		"conversation": {"id": "c1"},
		"sender": {"speakerUri": "urn:a:1"},
		"events": []
	}`)

	_, err := Decode(data, nil)
	if !IsMalformed(err) {
		t.Fatalf("want MalformedError, got %v", err)
	}
}

func TestDecodeRejectsUnknownEventType(t *testing.T) {
	data := []byte(`{
		"schema": {"version": "1.1.0"},
		"conversation": {"id": "c1"},
		"sender": {"speakerUri": "urn:a:1"},
		"events": [{"eventType": "danceFloor"}]
	}`)

	_, err := Decode(data, nil)
	if !IsMalformed(err) {
		t.Fatalf("want MalformedError, got %v", err)
	}
}

func TestDecodeRejectsUnsupportedSchema(t *testing.T) {
	data := []byte(`{
		"schema": {"version": "0.9.9"},
		"conversation": {"id": "c1"},
		"sender": {"speakerUri": "urn:a:1"},
		"events": [{"eventType": "bye"}]
	}`)

	_, err := Decode(data, map[string]bool{"1.1.0": true})
	if !IsUnsupportedSchema(err) {
		t.Fatalf("want UnsupportedSchemaError, got %v", err)
	}
}

func TestDecodeDropsPersistentState(t *testing.T) {
	data := []byte(`{
		"schema": {"version": "1.1.0"},
		"conversation": {"id": "c1", "conversants": [
			{"identification": {"speakerUri": "urn:a:1", "persistentState": {"secret": "x"}}}
		]},
		"sender": {"speakerUri": "urn:a:1"},
		"events": [{"eventType": "bye"}]
	}`)

	e := decodeDefault(t, data)
	out, err := Encode(e, EncodeOptions{})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	var generic map[string]interface{}
	if err := json.Unmarshal(out, &generic); err != nil {
		t.Fatalf("re-unmarshal failed: %v", err)
	}
	conv := generic["conversation"].(map[string]interface{})
	conversants := conv["conversants"].([]interface{})
	ident := conversants[0].(map[string]interface{})["identification"].(map[string]interface{})
	if _, ok := ident["persistentState"]; ok {
		t.Fatalf("persistentState leaked into re-emitted envelope: %v", ident)
	}
}

func TestRoundTrip(t *testing.T) {
	data := []byte(`{
		"schema": {"version": "1.1.0", "url": "https://example.test/schema"},
		"conversation": {
			"id": "c1",
			"assignedFloorRoles": {"convener": ["urn:a:1"]},
			"floorGranted": ["urn:a:1"]
		},
		"sender": {"speakerUri": "urn:a:1", "serviceUrl": "https://example.test/a1"},
		"events": [
			{"eventType": "utterance", "to": {"speakerUri": "urn:a:2", "private": true}, "parameters": {"text": "hi"}}
		]
	}`)

	e1 := decodeDefault(t, data)
	out, err := Encode(e1, EncodeOptions{})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	e2, err := Decode(out, nil)
	if err != nil {
		t.Fatalf("re-Decode: %v", err)
	}

	if e1.Conversation.ID != e2.Conversation.ID ||
		e1.Sender.SpeakerURI != e2.Sender.SpeakerURI ||
		len(e1.Events) != len(e2.Events) ||
		e1.Events[0].To.SpeakerURI != e2.Events[0].To.SpeakerURI ||
		e1.Events[0].To.Private != e2.Events[0].To.Private {
		t.Fatalf("round trip mismatch: %+v vs %+v", e1, e2)
	}
}

func TestEncodeOmitsUnsetOptionalFields(t *testing.T) {
	e := &Envelope{
		Schema:       Schema{Version: SchemaVersion},
		Conversation: Conversation{ID: "c1"},
		Sender:       Sender{SpeakerURI: "urn:a:1"},
		Events:       []Event{{EventType: EventBye}},
	}
	out, err := Encode(e, EncodeOptions{})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	s := string(out)
	for _, absent := range []string{"url", "conversants", "assignedFloorRoles", "floorGranted", "serviceUrl", "to", "parameters", "reason"} {
		if jsonContainsKey(s, absent) {
			t.Errorf("expected %q to be omitted from %s", absent, s)
		}
	}
}

func jsonContainsKey(s, key string) bool {
	needle := `"` + key + `":`
	for i := 0; i+len(needle) <= len(s); i++ {
		if s[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}

func TestEncodeWrapped(t *testing.T) {
	e := &Envelope{
		Schema:       Schema{Version: SchemaVersion},
		Conversation: Conversation{ID: "c1"},
		Sender:       Sender{SpeakerURI: "urn:a:1"},
		Events:       []Event{{EventType: EventBye}},
	}
	out, err := Encode(e, EncodeOptions{EmitWrapped: true})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var generic map[string]interface{}
	if err := json.Unmarshal(out, &generic); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := generic["openFloor"]; !ok {
		t.Fatalf("expected openFloor wrapper key, got %s", out)
	}
}
