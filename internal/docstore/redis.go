// Package docstore provides the shared real-time document store every
// viewer reads and writes: JSON values addressed by slash-separated key
// paths, with per-path subscriptions that deliver a snapshot for every
// committed mutation. Redis holds the values and fans out change
// notifications over pub/sub.
package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	docPrefix  = "doc:"
	kidsPrefix = "kids:"
	chanPrefix = "ev:"
)

// RedisStore implements the document store over a single Redis instance.
type RedisStore struct {
	client *redis.Client
	ids    pushIDGen
}

// NewRedisStore connects to Redis at the given URL.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func docKey(path string) string  { return docPrefix + path }
func kidsKey(path string) string { return kidsPrefix + path }
func chanKey(path string) string { return chanPrefix + path }

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// Join builds a store path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// Get returns the value at path, assembling nested children into a single
// JSON object. Values that live nested inside an ancestor's leaf document
// are visible at their own path, with documents at or below the path
// overriding them field by field. A nil result means the path holds no
// value anywhere.
func (s *RedisStore) Get(ctx context.Context, path string) (json.RawMessage, error) {
	snap, err := s.assemble(ctx, path)
	if err != nil {
		return nil, err
	}
	inherited, err := s.inheritedFromAncestors(ctx, splitPath(path))
	if err != nil {
		return nil, err
	}
	if snap == nil {
		snap = inherited
	} else if inherited != nil {
		snap = mergeValue(inherited, snap)
	}
	if snap == nil {
		return nil, nil
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot %s: %w", path, err)
	}
	return payload, nil
}

// inheritedFromAncestors collects the value nested at path inside ancestor
// leaf documents, nearer ancestors overriding farther ones. The read-side
// mirror of stripFromAncestorLeaf: a field written as part of an ancestor's
// document is still addressable at its own path.
func (s *RedisStore) inheritedFromAncestors(ctx context.Context, segments []string) (any, error) {
	var acc any
	for i := 1; i < len(segments); i++ {
		ancestor := Join(segments[:i]...)
		raw, err := s.client.Get(ctx, docKey(ancestor)).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", ancestor, err)
		}
		var doc any
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, fmt.Errorf("decode value at %s: %w", ancestor, err)
		}
		if nested := nestedField(doc, segments[i:]); nested != nil {
			acc = mergeValue(acc, nested)
		}
	}
	return acc, nil
}

func nestedField(doc any, fields []string) any {
	for _, field := range fields {
		obj, ok := doc.(map[string]any)
		if !ok {
			return nil
		}
		doc = obj[field]
	}
	return doc
}

func (s *RedisStore) assemble(ctx context.Context, path string) (any, error) {
	var base any
	leaf, err := s.client.Get(ctx, docKey(path)).Result()
	if err == nil {
		if err := json.Unmarshal([]byte(leaf), &base); err != nil {
			return nil, fmt.Errorf("decode value at %s: %w", path, err)
		}
	} else if err != redis.Nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	kids, err := s.client.SMembers(ctx, kidsKey(path)).Result()
	if err != nil {
		return nil, fmt.Errorf("read children of %s: %w", path, err)
	}
	if len(kids) == 0 {
		return base, nil
	}

	obj, ok := base.(map[string]any)
	if !ok {
		obj = map[string]any{}
	}
	sort.Strings(kids)
	for _, kid := range kids {
		child, err := s.assemble(ctx, path+"/"+kid)
		if err != nil {
			return nil, err
		}
		if child == nil {
			continue
		}
		obj[kid] = mergeValue(obj[kid], child)
	}
	if len(obj) == 0 {
		return nil, nil
	}
	return obj, nil
}

// mergeValue overlays a child node onto the matching field of an ancestor
// document. Objects merge key by key with the child winning; anything else
// is replaced outright.
func mergeValue(base, over any) any {
	baseObj, okBase := base.(map[string]any)
	overObj, okOver := over.(map[string]any)
	if !okBase || !okOver {
		return over
	}
	for key, val := range overObj {
		baseObj[key] = mergeValue(baseObj[key], val)
	}
	return baseObj
}

// Write replaces the value at path and notifies every subscriber whose
// subscription covers it, including the writer's own.
func (s *RedisStore) Write(ctx context.Context, path string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal value for %s: %w", path, err)
	}

	// A write replaces the whole subtree at path.
	if err := s.deleteSubtree(ctx, path); err != nil {
		return err
	}
	if err := s.client.Set(ctx, docKey(path), string(payload), 0).Err(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := s.registerInAncestors(ctx, path); err != nil {
		return err
	}
	s.publish(ctx, path)
	return nil
}

// Push appends value under a freshly generated key beneath path and returns
// the key. Keys are chronologically monotonic, so natural string order
// matches insertion order.
func (s *RedisStore) Push(ctx context.Context, path string, value any) (string, error) {
	key := s.ids.next(time.Now())
	if err := s.Write(ctx, path+"/"+key, value); err != nil {
		return "", err
	}
	return key, nil
}

// NewKey returns a fresh push key without writing anything. Useful when a
// caller needs a key that sorts chronologically with pushed entries.
func (s *RedisStore) NewKey() string {
	return s.ids.next(time.Now())
}

// Remove deletes the value at path, firing subscriber updates.
func (s *RedisStore) Remove(ctx context.Context, path string) error {
	if err := s.deleteSubtree(ctx, path); err != nil {
		return err
	}
	segments := splitPath(path)
	if len(segments) > 1 {
		parent := Join(segments[:len(segments)-1]...)
		if err := s.client.SRem(ctx, kidsKey(parent), segments[len(segments)-1]).Err(); err != nil {
			return fmt.Errorf("unregister %s: %w", path, err)
		}
	}
	if err := s.stripFromAncestorLeaf(ctx, segments); err != nil {
		return err
	}
	s.publish(ctx, path)
	return nil
}

func (s *RedisStore) deleteSubtree(ctx context.Context, path string) error {
	kids, err := s.client.SMembers(ctx, kidsKey(path)).Result()
	if err != nil {
		return fmt.Errorf("read children of %s: %w", path, err)
	}
	for _, kid := range kids {
		if err := s.deleteSubtree(ctx, path+"/"+kid); err != nil {
			return err
		}
	}
	if err := s.client.Del(ctx, docKey(path), kidsKey(path)).Err(); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

func (s *RedisStore) registerInAncestors(ctx context.Context, path string) error {
	segments := splitPath(path)
	for i := len(segments) - 1; i > 0; i-- {
		parent := Join(segments[:i]...)
		if err := s.client.SAdd(ctx, kidsKey(parent), segments[i]).Err(); err != nil {
			return fmt.Errorf("register %s: %w", path, err)
		}
	}
	return nil
}

// stripFromAncestorLeaf clears a removed field that only exists nested
// inside an ancestor's leaf document. Plain read-modify-write: the store
// has no transactions and last write wins.
func (s *RedisStore) stripFromAncestorLeaf(ctx context.Context, segments []string) error {
	for i := len(segments) - 1; i > 0; i-- {
		ancestor := Join(segments[:i]...)
		raw, err := s.client.Get(ctx, docKey(ancestor)).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", ancestor, err)
		}
		var doc any
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return fmt.Errorf("decode value at %s: %w", ancestor, err)
		}
		if !stripNested(doc, segments[i:]) {
			return nil
		}
		payload, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("marshal value for %s: %w", ancestor, err)
		}
		if err := s.client.Set(ctx, docKey(ancestor), string(payload), 0).Err(); err != nil {
			return fmt.Errorf("write %s: %w", ancestor, err)
		}
		return nil
	}
	return nil
}

func stripNested(doc any, fields []string) bool {
	obj, ok := doc.(map[string]any)
	if !ok || len(fields) == 0 {
		return false
	}
	if len(fields) == 1 {
		if _, present := obj[fields[0]]; !present {
			return false
		}
		delete(obj, fields[0])
		return true
	}
	return stripNested(obj[fields[0]], fields[1:])
}

func (s *RedisStore) publish(ctx context.Context, path string) {
	if err := s.client.Publish(ctx, chanKey(path), path).Err(); err != nil {
		log.Printf("docstore: publish %s: %v", path, err)
	}
}

// Subscription is a live view of one path. Updates carries the current
// snapshot: one delivery immediately after subscribing (nil when the path
// has no value), then one per committed mutation that touches the path.
// Callers must Close it on teardown or the pub/sub connection leaks.
type Subscription struct {
	out    chan json.RawMessage
	pubsub *redis.PubSub
}

func (sub *Subscription) Updates() <-chan json.RawMessage {
	return sub.out
}

func (sub *Subscription) Close() error {
	return sub.pubsub.Close()
}

// Subscribe opens a subscription covering path: mutations at path, beneath
// it, and at any ancestor all produce a fresh snapshot of path. Snapshots
// coalesce when the consumer lags, keeping only the newest.
func (s *RedisStore) Subscribe(ctx context.Context, path string) (*Subscription, error) {
	segments := splitPath(path)
	patterns := []string{chanKey(path), chanKey(path) + "/*"}
	for i := 1; i < len(segments); i++ {
		patterns = append(patterns, chanKey(Join(segments[:i]...)))
	}

	pubsub := s.client.PSubscribe(ctx, patterns...)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", path, err)
	}

	sub := &Subscription{
		out:    make(chan json.RawMessage, 1),
		pubsub: pubsub,
	}

	initial, err := s.Get(ctx, path)
	if err != nil {
		_ = pubsub.Close()
		return nil, err
	}
	sub.out <- initial

	go func() {
		defer close(sub.out)
		for range pubsub.Channel() {
			snap, err := s.Get(ctx, path)
			if err != nil {
				log.Printf("docstore: snapshot %s: %v", path, err)
				continue
			}
			sub.deliver(snap)
		}
	}()

	return sub, nil
}

// deliver keeps last-value-wins semantics: a slow consumer sees the newest
// snapshot, never a backlog of stale ones.
func (sub *Subscription) deliver(snap json.RawMessage) {
	for {
		select {
		case sub.out <- snap:
			return
		default:
			select {
			case <-sub.out:
			default:
			}
		}
	}
}
