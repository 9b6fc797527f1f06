package notify

import (
	"testing"
	"time"
)

func TestPostAndActive(t *testing.T) {
	n := New()
	n.Post("Permission denied", "sessions/s1/unmodTimer")

	active := n.Active()
	if len(active) != 1 {
		t.Fatalf("expected 1 notice, got %d", len(active))
	}
	if active[0].Header != "Permission denied" || active[0].Count != 1 {
		t.Errorf("unexpected notice: %+v", active[0])
	}
}

func TestIdenticalPairsCollapse(t *testing.T) {
	n := New()
	for i := 0; i < 5; i++ {
		n.Post("Permission denied", "sessions/s1/unmodTimer")
	}
	n.Post("Permission denied", "sessions/s1/motions")

	active := n.Active()
	if len(active) != 2 {
		t.Fatalf("expected 2 visible notices, got %d", len(active))
	}
	if active[0].Count != 5 {
		t.Errorf("expected count 5 on collapsed notice, got %d", active[0].Count)
	}
	if active[1].Count != 1 {
		t.Errorf("expected count 1 on distinct notice, got %d", active[1].Count)
	}
}

func TestDismissIsIndividual(t *testing.T) {
	n := New()
	n.Post("Permission denied", "path-a")
	n.Post("Write failed", "path-b")

	first := n.Active()[0]
	n.Dismiss(first.ID)

	active := n.Active()
	if len(active) != 1 || active[0].Header != "Write failed" {
		t.Errorf("expected only the second notice to survive, got %+v", active)
	}

	// Dismissing an unknown id is a no-op.
	n.Dismiss("ntc_missing")
	if len(n.Active()) != 1 {
		t.Error("dismissing unknown id changed state")
	}
}

func TestRepostAfterDismissIsFresh(t *testing.T) {
	n := New()
	n.Post("Permission denied", "path-a")
	id := n.Active()[0].ID
	n.Dismiss(id)

	n.Post("Permission denied", "path-a")
	active := n.Active()
	if len(active) != 1 {
		t.Fatalf("expected 1 notice, got %d", len(active))
	}
	if active[0].ID == id {
		t.Error("repost after dismissal should mint a new notice")
	}
	if active[0].Count != 1 {
		t.Errorf("expected fresh count 1, got %d", active[0].Count)
	}
}

func TestWatchReceivesPosts(t *testing.T) {
	n := New()
	ch, stop := n.Watch()
	defer stop()

	n.Post("Permission denied", "path-a")

	select {
	case notice := <-ch:
		if notice.Header != "Permission denied" {
			t.Errorf("unexpected notice: %+v", notice)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watcher never received the notice")
	}

	// Collapsed reposts still reach watchers with the bumped count.
	n.Post("Permission denied", "path-a")
	select {
	case notice := <-ch:
		if notice.Count != 2 {
			t.Errorf("expected bumped count 2, got %d", notice.Count)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watcher never received the bump")
	}
}

func TestWatchStopCloses(t *testing.T) {
	n := New()
	ch, stop := n.Watch()
	stop()
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after stop")
	}
	// Stopping twice must not panic.
	stop()
}
