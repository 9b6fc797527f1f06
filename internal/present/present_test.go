package present

import (
	"encoding/json"
	"testing"
	"time"

	"gavel/api/internal/committee"
)

func receive(t *testing.T, ch <-chan Snapshot) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		if !ok {
			t.Fatal("listener channel closed")
		}
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return Snapshot{}
	}
}

func TestPublishReachesAttachedListener(t *testing.T) {
	hub := NewHub()
	ch, detach := hub.Attach(nil)
	defer detach()

	hub.Publish(Unmod(committee.TimerState{Remaining: 600}))

	snap := receive(t, ch)
	if snap.Type != KindUnmod {
		t.Fatalf("expected unmod snapshot, got %s", snap.Type)
	}
	var state committee.TimerState
	if err := json.Unmarshal(snap.Data, &state); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if state.Remaining != 600 {
		t.Errorf("expected remaining 600, got %d", state.Remaining)
	}
}

func TestPublishWithoutListenerIsDropped(t *testing.T) {
	hub := NewHub()
	hub.Publish(Idle()) // nothing to assert beyond not blocking

	ch, detach := hub.Attach(nil)
	defer detach()
	select {
	case snap := <-ch:
		t.Fatalf("no replay expected, got %v", snap)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLastValueWinsWhenListenerLags(t *testing.T) {
	hub := NewHub()
	ch, detach := hub.Attach(nil)
	defer detach()

	hub.Publish(Unmod(committee.TimerState{Remaining: 3}))
	hub.Publish(Unmod(committee.TimerState{Remaining: 2}))
	hub.Publish(Mod(committee.CaucusState{Topic: "cyber"}))

	snap := receive(t, ch)
	if snap.Type != KindMod {
		t.Errorf("expected only the newest snapshot, got %s", snap.Type)
	}
}

func TestPayloadIsCopiedNotAliased(t *testing.T) {
	hub := NewHub()
	first, detachFirst := hub.Attach(nil)
	defer detachFirst()
	second, detachSecond := hub.Attach(nil)
	defer detachSecond()

	caucus := committee.CaucusState{
		Topic: "cyber",
		Queue: map[string]committee.SpeakerEvent{"k1": {Who: "france"}},
	}
	hub.Publish(Mod(caucus))

	// Mutating the primary's live state after publish must not affect what
	// either window received.
	caucus.Queue["k2"] = committee.SpeakerEvent{Who: "ghana"}

	for _, ch := range []<-chan Snapshot{first, second} {
		snap := receive(t, ch)
		var got committee.CaucusState
		if err := json.Unmarshal(snap.Data, &got); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if len(got.Queue) != 1 {
			t.Errorf("snapshot aliased live state: %v", got.Queue)
		}
	}

	// The two listeners own independent buffers too.
	s1 := Snapshot{Type: KindIdle}
	s2 := s1.copy()
	if &s1 == &s2 {
		t.Error("copy returned the same snapshot")
	}
}

func TestDetachInvokesCloseCallback(t *testing.T) {
	hub := NewHub()
	closed := false
	ch, detach := hub.Attach(func() { closed = true })

	detach()
	if !closed {
		t.Error("close callback not invoked")
	}
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after detach")
	}
	if hub.ListenerCount() != 0 {
		t.Errorf("expected 0 listeners, got %d", hub.ListenerCount())
	}

	// Detaching twice must not panic or fire the callback again.
	closed = false
	detach()
	if closed {
		t.Error("close callback fired twice")
	}
}

func TestSwitchingKindsDiscardsPreviousPayload(t *testing.T) {
	hub := NewHub()
	ch, detach := hub.Attach(nil)
	defer detach()

	hub.Publish(Mod(committee.CaucusState{Topic: "cyber"}))
	receive(t, ch)

	hub.Publish(Idle())
	snap := receive(t, ch)
	if snap.Type != KindIdle || snap.Data != nil {
		t.Errorf("idle snapshot should carry no payload, got %+v", snap)
	}
}
