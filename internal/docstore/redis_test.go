package docstore

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestStore(t *testing.T) *RedisStore {
	t.Helper()
	s := miniredis.RunT(t)
	store, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create doc store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func nextSnapshot(t *testing.T, sub *Subscription) json.RawMessage {
	t.Helper()
	select {
	case snap := <-sub.Updates():
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func decodeMap(t *testing.T, raw json.RawMessage) map[string]any {
	t.Helper()
	if raw == nil {
		t.Fatal("expected a snapshot, got nil")
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	return m
}

func TestNewRedisStore(t *testing.T) {
	store := setupTestStore(t)

	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestWriteAndGet(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.Write(ctx, "sessions/s1", map[string]any{"name": "DISEC"}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	raw, err := store.Get(ctx, "sessions/s1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	got := decodeMap(t, raw)
	if got["name"] != "DISEC" {
		t.Errorf("expected name DISEC, got %v", got["name"])
	}
}

func TestGetAbsentPath(t *testing.T) {
	store := setupTestStore(t)

	raw, err := store.Get(context.Background(), "sessions/nope")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if raw != nil {
		t.Errorf("expected nil for absent path, got %s", raw)
	}
}

func TestSubscribeDeliversInitialSnapshot(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	// Absent path: initial snapshot is nil.
	sub, err := store.Subscribe(ctx, "sessions/s1")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Close()
	if snap := nextSnapshot(t, sub); snap != nil {
		t.Errorf("expected nil initial snapshot, got %s", snap)
	}

	// Present path: initial snapshot carries the value.
	if err := store.Write(ctx, "sessions/s2", map[string]any{"name": "UNSC"}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	sub2, err := store.Subscribe(ctx, "sessions/s2")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub2.Close()
	got := decodeMap(t, nextSnapshot(t, sub2))
	if got["name"] != "UNSC" {
		t.Errorf("expected name UNSC, got %v", got["name"])
	}
}

func TestSubscriberSeesOwnWrite(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	sub, err := store.Subscribe(ctx, "sessions/s1/unmodTimer")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Close()
	nextSnapshot(t, sub) // initial nil

	if err := store.Write(ctx, "sessions/s1/unmodTimer", map[string]any{"remaining": 60}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	got := decodeMap(t, nextSnapshot(t, sub))
	if got["remaining"] != float64(60) {
		t.Errorf("expected remaining 60, got %v", got["remaining"])
	}
}

func TestAncestorSubscriptionSeesChildWrite(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.Write(ctx, "sessions/s1", map[string]any{"name": "DISEC"}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	sub, err := store.Subscribe(ctx, "sessions/s1")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Close()
	nextSnapshot(t, sub) // initial

	if err := store.Write(ctx, "sessions/s1/caucuses/c1", map[string]any{"topic": "cyber"}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	got := decodeMap(t, nextSnapshot(t, sub))
	caucuses, ok := got["caucuses"].(map[string]any)
	if !ok {
		t.Fatalf("expected nested caucuses object, got %v", got["caucuses"])
	}
	caucus, ok := caucuses["c1"].(map[string]any)
	if !ok || caucus["topic"] != "cyber" {
		t.Errorf("expected caucus c1 with topic cyber, got %v", caucuses["c1"])
	}
	if got["name"] != "DISEC" {
		t.Errorf("child write must not clobber ancestor fields, got %v", got)
	}
}

func TestChildSubscriptionSeesAncestorWrite(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	sub, err := store.Subscribe(ctx, "sessions/s1/caucuses/c1/caucusTimer")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Close()
	nextSnapshot(t, sub) // initial nil

	// Writing the whole caucus must wake the nested timer subscription.
	if err := store.Write(ctx, "sessions/s1/caucuses/c1", map[string]any{
		"topic":       "cyber",
		"caucusTimer": map[string]any{"remaining": 600, "elapsed": 0, "ticking": false},
	}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	got := decodeMap(t, nextSnapshot(t, sub))
	if got["remaining"] != float64(600) {
		t.Errorf("expected remaining 600, got %v", got["remaining"])
	}
}

func TestGetReadsFieldNestedInLeafDocument(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.Write(ctx, "sessions/s1/caucuses/c1", map[string]any{
		"topic":       "cyber",
		"caucusTimer": map[string]any{"remaining": 600, "elapsed": 0, "ticking": false},
	}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	raw, err := store.Get(ctx, "sessions/s1/caucuses/c1/caucusTimer")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	got := decodeMap(t, raw)
	if got["remaining"] != float64(600) {
		t.Errorf("expected remaining 600 from the caucus document, got %v", got["remaining"])
	}

	// A document written at the nested path overrides the ancestor's field.
	if err := store.Write(ctx, "sessions/s1/caucuses/c1/caucusTimer", map[string]any{
		"remaining": 300, "elapsed": 10, "ticking": true,
	}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	raw, err = store.Get(ctx, "sessions/s1/caucuses/c1/caucusTimer")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	got = decodeMap(t, raw)
	if got["remaining"] != float64(300) || got["ticking"] != true {
		t.Errorf("expected the overriding timer document, got %v", got)
	}
}

func TestPushKeysFollowInsertionOrder(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	var keys []string
	for i := 0; i < 5; i++ {
		key, err := store.Push(ctx, "sessions/s1/motions", map[string]any{"proposal": i})
		if err != nil {
			t.Fatalf("Push failed: %v", err)
		}
		keys = append(keys, key)
	}

	for i := 1; i < len(keys); i++ {
		if !(keys[i-1] < keys[i]) {
			t.Errorf("push keys out of order: %q !< %q", keys[i-1], keys[i])
		}
	}

	raw, err := store.Get(ctx, "sessions/s1/motions")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	got := decodeMap(t, raw)
	if len(got) != 5 {
		t.Errorf("expected 5 motions, got %d", len(got))
	}
}

func TestRemoveDeletesValueAndNotifies(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	key, err := store.Push(ctx, "sessions/s1/motions", map[string]any{"proposal": "x"})
	if err != nil {
		t.Fatalf("Push failed: %v", err)
	}

	sub, err := store.Subscribe(ctx, "sessions/s1/motions")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Close()
	nextSnapshot(t, sub) // initial

	if err := store.Remove(ctx, "sessions/s1/motions/"+key); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	if snap := nextSnapshot(t, sub); snap != nil {
		t.Errorf("expected empty motion set after removal, got %s", snap)
	}
}

func TestRemoveStripsFieldNestedInLeafDocument(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	// Whole caucus written as one document, queue entries inside it.
	if err := store.Write(ctx, "sessions/s1/caucuses/c1", map[string]any{
		"topic": "cyber",
		"queue": map[string]any{
			"k1": map[string]any{"who": "france"},
			"k2": map[string]any{"who": "ghana"},
		},
	}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if err := store.Remove(ctx, "sessions/s1/caucuses/c1/queue/k1"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	raw, err := store.Get(ctx, "sessions/s1/caucuses/c1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	got := decodeMap(t, raw)
	queue, ok := got["queue"].(map[string]any)
	if !ok {
		t.Fatalf("expected queue object, got %v", got["queue"])
	}
	if _, present := queue["k1"]; present {
		t.Error("k1 should have been removed from the queue")
	}
	if _, present := queue["k2"]; !present {
		t.Error("k2 should have survived the removal")
	}
}

func TestWriteReplacesSubtree(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if _, err := store.Push(ctx, "sessions/s1/caucuses/c1/queue", map[string]any{"who": "france"}); err != nil {
		t.Fatalf("Push failed: %v", err)
	}

	// A write at the caucus replaces everything beneath it.
	if err := store.Write(ctx, "sessions/s1/caucuses/c1", map[string]any{"topic": "fresh"}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	raw, err := store.Get(ctx, "sessions/s1/caucuses/c1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	got := decodeMap(t, raw)
	if _, present := got["queue"]; present {
		t.Errorf("stale queue survived a replacing write: %v", got)
	}
}

type recordingNotices struct {
	headers  []string
	messages []string
}

func (n *recordingNotices) Post(header, message string) {
	n.headers = append(n.headers, header)
	n.messages = append(n.messages, message)
}

func TestClientPermissionDenied(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	notices := &recordingNotices{}

	observer := store.As(Actor{ID: "aud1", Role: RoleObserver}, nil, notices)
	observer.Write(ctx, "sessions/s1/unmodTimer", map[string]any{"remaining": 1})

	if len(notices.headers) != 1 || notices.headers[0] != "Permission denied" {
		t.Fatalf("expected one permission denied notice, got %v", notices.headers)
	}

	raw, err := store.Get(ctx, "sessions/s1/unmodTimer")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if raw != nil {
		t.Errorf("denied write must not land, got %s", raw)
	}
}

func TestClientDelegateQueuePushAllowed(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	notices := &recordingNotices{}

	delegate := store.As(Actor{ID: "del1", Role: RoleDelegate}, nil, notices)
	key := delegate.Push(ctx, "sessions/s1/caucuses/c1/queue", map[string]any{"who": "del1"})
	if key == "" {
		t.Fatal("expected a push key")
	}
	if len(notices.headers) != 0 {
		t.Fatalf("unexpected notices: %v", notices.headers)
	}

	raw, err := store.Get(ctx, "sessions/s1/caucuses/c1/queue/"+key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if raw == nil {
		t.Error("delegate queue push should have landed")
	}
}

func TestClientChairWriteAllowed(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	notices := &recordingNotices{}

	chair := store.As(Actor{ID: "chair", Role: RoleChair}, nil, notices)
	chair.Write(ctx, "sessions/s1/unmodTimer", map[string]any{"remaining": 600})

	if len(notices.headers) != 0 {
		t.Fatalf("unexpected notices: %v", notices.headers)
	}
	raw, err := store.Get(ctx, "sessions/s1/unmodTimer")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if raw == nil {
		t.Error("chair write should have landed")
	}
}
