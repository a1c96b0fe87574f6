package floorhub

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/openfloor-hub/floorhub/internal/envelope"
)

func TestManagerEndToEndGrantAndQueue(t *testing.T) {
	m := New(Config{HubSpeakerURI: "urn:floorhub:hub"})
	defer m.Close()

	var mu sync.Mutex
	var deliveredTo []string
	for _, uri := range []string{"urn:a:1", "urn:a:2"} {
		uri := uri
		m.RegisterRoute(uri, func(ctx context.Context, env *envelope.Envelope) error {
			mu.Lock()
			deliveredTo = append(deliveredTo, uri)
			mu.Unlock()
			return nil
		})
	}

	raw := []byte(`{
		"schema": {"version": "1.1.0"},
		"conversation": {"id": "c1"},
		"sender": {"speakerUri": "urn:a:1"},
		"events": [{"eventType": "requestFloor"}]
	}`)
	if _, err := m.ProcessEnvelope(context.Background(), raw); err != nil {
		t.Fatalf("ProcessEnvelope: %v", err)
	}

	holder, ok := m.Holder("c1")
	if !ok || holder != "urn:a:1" {
		t.Fatalf("Holder = %q, %v", holder, ok)
	}

	raw2 := []byte(`{
		"schema": {"version": "1.1.0"},
		"conversation": {"id": "c1"},
		"sender": {"speakerUri": "urn:a:2"},
		"events": [{"eventType": "requestFloor", "parameters": {"priority": 5}}]
	}`)
	if _, err := m.ProcessEnvelope(context.Background(), raw2); err != nil {
		t.Fatalf("ProcessEnvelope: %v", err)
	}

	q := m.Queue("c1")
	if len(q) != 1 || q[0].SpeakerURI != "urn:a:2" {
		t.Fatalf("Queue = %+v", q)
	}

	mu.Lock()
	gotGrant := len(deliveredTo) >= 1
	mu.Unlock()
	if !gotGrant {
		t.Fatalf("expected at least one delivery")
	}
}

func TestManagerEncodeOutboundRespectsWrapping(t *testing.T) {
	m := New(Config{EmitWrappedEnvelopes: true})
	defer m.Close()

	env := &envelope.Envelope{
		Schema:       envelope.Schema{Version: envelope.SchemaVersion},
		Conversation: envelope.Conversation{ID: "c1"},
		Sender:       envelope.Sender{SpeakerURI: "urn:floorhub:hub"},
		Events:       []envelope.Event{{EventType: envelope.EventBye}},
	}
	out, err := m.EncodeOutbound(env)
	if err != nil {
		t.Fatalf("EncodeOutbound: %v", err)
	}
	if !contains(string(out), `"openFloor"`) {
		t.Fatalf("expected wrapped output, got %s", out)
	}
}

func TestNewFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hub.yaml")
	if err := os.WriteFile(path, []byte("hub_speaker_uri: urn:floorhub:from-file\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	m, err := NewFromFile(path)
	if err != nil {
		t.Fatalf("NewFromFile: %v", err)
	}
	defer m.Close()

	raw := []byte(`{
		"schema": {"version": "1.1.0"},
		"conversation": {"id": "c1"},
		"sender": {"speakerUri": "urn:a:1"},
		"events": [{"eventType": "requestFloor"}]
	}`)
	res, err := m.ProcessEnvelope(context.Background(), raw)
	if err != nil {
		t.Fatalf("ProcessEnvelope: %v", err)
	}
	if len(res.Outbound) != 1 || res.Outbound[0].Sender.SpeakerURI != "urn:floorhub:from-file" {
		t.Fatalf("outbound sender mismatch: %+v", res.Outbound)
	}
}

func contains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}
