package envelope

import "testing"

func TestIsFloorEvent(t *testing.T) {
	cases := map[EventType]bool{
		EventRequestFloor: true,
		EventGrantFloor:   true,
		EventRevokeFloor:  true,
		EventYieldFloor:   true,
		EventUtterance:    false,
		EventInvite:       false,
		EventContext:      false,
	}
	for et, want := range cases {
		if got := IsFloorEvent(et); got != want {
			t.Errorf("IsFloorEvent(%s) = %v, want %v", et, got, want)
		}
	}
}
