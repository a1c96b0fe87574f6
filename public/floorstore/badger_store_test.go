package floorstore

import (
	"testing"
	"time"

	"github.com/openfloor-hub/floorhub/internal/envelope"
	"github.com/openfloor-hub/floorhub/internal/floor"
)

func newTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	s, err := NewBadgerStore(DefaultConfig(t.TempDir()))
	if err != nil {
		t.Fatalf("NewBadgerStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)

	snap := ConversationSnapshot{
		ID: "c1",
		Conversants: []envelope.Conversant{
			{Identification: envelope.Identification{SpeakerURI: "urn:a:1"}},
		},
		AssignedFloorRoles: map[string][]string{"convener": {"urn:a:1"}},
		Holder:             "urn:a:1",
		Queue: []floor.Request{
			{SpeakerURI: "urn:a:2", Priority: 3, EnqueuedAt: time.Unix(1000, 0)},
		},
	}

	if err := s.Save(snap); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load("c1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Holder != snap.Holder {
		t.Errorf("Holder = %q, want %q", got.Holder, snap.Holder)
	}
	if len(got.Queue) != 1 || got.Queue[0].SpeakerURI != "urn:a:2" || got.Queue[0].Priority != 3 {
		t.Errorf("Queue round-trip mismatch: %+v", got.Queue)
	}
	if !got.Queue[0].EnqueuedAt.Equal(snap.Queue[0].EnqueuedAt) {
		t.Errorf("EnqueuedAt round-trip mismatch: %v vs %v", got.Queue[0].EnqueuedAt, snap.Queue[0].EnqueuedAt)
	}
	if len(got.Conversants) != 1 || got.Conversants[0].Identification.SpeakerURI != "urn:a:1" {
		t.Errorf("Conversants round-trip mismatch: %+v", got.Conversants)
	}
}

func TestLoadMissingReturnsErrNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Load("missing"); err != ErrNotFound {
		t.Fatalf("Load(missing) = %v, want ErrNotFound", err)
	}
}

func TestDeleteAndList(t *testing.T) {
	s := newTestStore(t)

	for _, id := range []string{"c1", "c2", "c3"} {
		if err := s.Save(ConversationSnapshot{ID: id}); err != nil {
			t.Fatalf("Save(%s): %v", id, err)
		}
	}

	ids, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("List = %v, want 3 entries", ids)
	}

	if err := s.Delete("c2"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Load("c2"); err != ErrNotFound {
		t.Fatalf("Load after Delete = %v, want ErrNotFound", err)
	}

	ids, err = s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("List after Delete = %v, want 2 entries", ids)
	}
}

func TestOperationsAfterCloseFail(t *testing.T) {
	s := newTestStore(t)
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Save(ConversationSnapshot{ID: "c1"}); err == nil {
		t.Fatalf("expected Save to fail after Close")
	}
	// Closing twice must be a no-op, not a panic.
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
