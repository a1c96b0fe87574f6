package hub

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/openfloor-hub/floorhub/internal/envelope"
)

func testHub(t *testing.T, clock func() time.Time) *Hub {
	t.Helper()
	h := New(Config{
		HubSpeakerURI:     "urn:floorhub:hub",
		SupportedVersions: map[string]bool{"1.1.0": true},
		MaxQueueDepth:     128,
		Lanes:             2,
	}, WithClock(clock))
	t.Cleanup(h.Close)
	return h
}

func recordingRoute(h *Hub, uri string, received *[]*envelope.Envelope, mu *sync.Mutex) {
	h.RegisterRoute(uri, func(ctx context.Context, env *envelope.Envelope) error {
		mu.Lock()
		*received = append(*received, env)
		mu.Unlock()
		return nil
	})
}

func envelopeJSON(t *testing.T, convID, sender string, events ...map[string]interface{}) []byte {
	t.Helper()
	body := map[string]interface{}{
		"schema":       map[string]interface{}{"version": "1.1.0"},
		"conversation": map[string]interface{}{"id": convID},
		"sender":       map[string]interface{}{"speakerUri": sender},
		"events":       events,
	}
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

// TestImmediateGrant implements spec 8.2 scenario S1.
func TestImmediateGrant(t *testing.T) {
	now := time.Unix(0, 0)
	h := testHub(t, func() time.Time { return now })

	var mu sync.Mutex
	var received []*envelope.Envelope
	recordingRoute(h, "urn:a:1", &received, &mu)

	raw := envelopeJSON(t, "c1", "urn:a:1", map[string]interface{}{
		"eventType":  "requestFloor",
		"parameters": map[string]interface{}{"priority": 0},
	})

	res, err := h.ProcessEnvelope(context.Background(), raw)
	if err != nil {
		t.Fatalf("ProcessEnvelope: %v", err)
	}
	if len(res.Outbound) != 1 || res.Outbound[0].Events[0].EventType != envelope.EventGrantFloor {
		t.Fatalf("expected one grantFloor outbound, got %+v", res.Outbound)
	}
	if res.Outbound[0].Events[0].To.SpeakerURI != "urn:a:1" {
		t.Fatalf("grant addressed to %+v, want urn:a:1", res.Outbound[0].Events[0].To)
	}
	if res.Outbound[0].Sender.SpeakerURI != "urn:floorhub:hub" {
		t.Fatalf("grant sender = %q, want hub's own URI", res.Outbound[0].Sender.SpeakerURI)
	}

	holder, ok := h.Holder("c1")
	if !ok || holder != "urn:a:1" {
		t.Fatalf("Holder = %q, %v", holder, ok)
	}
	conv := h.Conversation("c1")
	if len(conv.FloorGranted) != 1 || conv.FloorGranted[0] != "urn:a:1" {
		t.Fatalf("FloorGranted = %v", conv.FloorGranted)
	}

	mu.Lock()
	gotGrant := len(received) == 1
	mu.Unlock()
	if !gotGrant {
		t.Fatalf("grant envelope was not delivered to urn:a:1")
	}
}

// TestMalformedRejectionIsTotal implements spec 8.2 scenario S6.
func TestMalformedRejectionIsTotal(t *testing.T) {
	now := time.Unix(0, 0)
	h := testHub(t, func() time.Time { return now })

	raw := envelopeJSON(t, "c1", "urn:a:1", map[string]interface{}{"eventType": "requestFloor"})
	if _, err := h.ProcessEnvelope(context.Background(), raw); err != nil {
		t.Fatalf("setup ProcessEnvelope: %v", err)
	}
	holder, _ := h.Holder("c1")
	if holder != "urn:a:1" {
		t.Fatalf("setup holder = %q", holder)
	}

	bad := []byte(`{
		"schema": {"version": "1.1.0"},
		"conversation": {"id": "c1"},
		"sender": {"speakerUri": "urn:a:1"},
		"events": [{"eventType": "yieldFloor"}, {"eventType": "not-a-real-event"}]
	}`)

	_, err := h.ProcessEnvelope(context.Background(), bad)
	if !envelope.IsMalformed(err) {
		t.Fatalf("expected MalformedError, got %v", err)
	}

	holder, _ = h.Holder("c1")
	if holder != "urn:a:1" {
		t.Fatalf("holder changed after rejected envelope: %q", holder)
	}
}

func TestUnsupportedSchemaRejected(t *testing.T) {
	h := testHub(t, time.Now)
	raw := []byte(`{
		"schema": {"version": "0.5.0"},
		"conversation": {"id": "c1"},
		"sender": {"speakerUri": "urn:a:1"},
		"events": [{"eventType": "bye"}]
	}`)
	_, err := h.ProcessEnvelope(context.Background(), raw)
	if !envelope.IsUnsupportedSchema(err) {
		t.Fatalf("expected UnsupportedSchemaError, got %v", err)
	}
}

func TestSelfRequestProducesNoOutboundGrant(t *testing.T) {
	now := time.Unix(0, 0)
	h := testHub(t, func() time.Time { return now })

	raw := envelopeJSON(t, "c1", "urn:a:1", map[string]interface{}{"eventType": "requestFloor"})
	res, err := h.ProcessEnvelope(context.Background(), raw)
	if err != nil {
		t.Fatalf("ProcessEnvelope: %v", err)
	}
	if len(res.Outbound) != 1 {
		t.Fatalf("expected initial grant, got %+v", res.Outbound)
	}

	raw2 := envelopeJSON(t, "c1", "urn:a:1", map[string]interface{}{"eventType": "requestFloor"})
	res2, err := h.ProcessEnvelope(context.Background(), raw2)
	if err != nil {
		t.Fatalf("ProcessEnvelope (idempotent): %v", err)
	}
	if len(res2.Outbound) != 0 {
		t.Fatalf("idempotent self-request must not emit outbound envelopes: %+v", res2.Outbound)
	}
}

func TestInviteUpdatesConversants(t *testing.T) {
	h := testHub(t, time.Now)

	raw := envelopeJSON(t, "c1", "urn:a:1", map[string]interface{}{
		"eventType": "invite",
		"to":        map[string]interface{}{"speakerUri": "urn:a:2"},
	})
	if _, err := h.ProcessEnvelope(context.Background(), raw); err != nil {
		t.Fatalf("ProcessEnvelope: %v", err)
	}

	conv := h.Conversation("c1")
	found := false
	for _, c := range conv.Conversants {
		if c.Identification.SpeakerURI == "urn:a:2" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected urn:a:2 in conversants: %+v", conv.Conversants)
	}
}

func TestTickRevokesOnTimeout(t *testing.T) {
	now := time.Unix(0, 0)
	h := New(Config{
		HubSpeakerURI:       "urn:floorhub:hub",
		SupportedVersions:  map[string]bool{"1.1.0": true},
		DefaultGrantTimeout: 5 * time.Second,
		Lanes:               1,
	}, WithClock(func() time.Time { return now }))
	t.Cleanup(h.Close)

	var mu sync.Mutex
	var received []*envelope.Envelope
	recordingRoute(h, "urn:a:1", &received, &mu)

	raw := envelopeJSON(t, "c1", "urn:a:1", map[string]interface{}{"eventType": "requestFloor"})
	if _, err := h.ProcessEnvelope(context.Background(), raw); err != nil {
		t.Fatalf("ProcessEnvelope: %v", err)
	}

	now = now.Add(6 * time.Second)
	outbound := h.Tick(context.Background())
	if len(outbound) != 1 || outbound[0].Events[0].EventType != envelope.EventRevokeFloor {
		t.Fatalf("expected one revokeFloor outbound, got %+v", outbound)
	}
	if outbound[0].Events[0].Reason != "@timeout" {
		t.Fatalf("reason = %q, want @timeout", outbound[0].Events[0].Reason)
	}

	if _, ok := h.Holder("c1"); ok {
		t.Fatalf("expected IDLE after timeout revoke")
	}
}

func TestRegisterUnregisterRoute(t *testing.T) {
	h := testHub(t, time.Now)
	h.RegisterRoute("urn:a:1", func(ctx context.Context, env *envelope.Envelope) error { return nil })
	h.UnregisterRoute("urn:a:1")

	raw := envelopeJSON(t, "c1", "urn:a:2", map[string]interface{}{
		"eventType": "utterance",
		"to":        map[string]interface{}{"speakerUri": "urn:a:1"},
	})
	res, err := h.ProcessEnvelope(context.Background(), raw)
	if err != nil {
		t.Fatalf("ProcessEnvelope: %v", err)
	}
	var sawUnknown bool
	for _, d := range res.Deliveries {
		if d.Destination == "urn:a:1" && d.Unknown {
			sawUnknown = true
		}
	}
	if !sawUnknown {
		t.Fatalf("expected UnknownRecipient after unregister: %+v", res.Deliveries)
	}
}
