package docstore

import (
	"context"
	"encoding/json"
	"time"
)

// noticePoster receives asynchronous failure notices. Satisfied by
// notify.Notifier.
type noticePoster interface {
	Post(header, message string)
}

// Client binds a store to one actor. Every mutation is fire-and-forget:
// permission denials and transport failures never reach the call site, they
// surface on the notification side channel instead.
type Client struct {
	store   *RedisStore
	actor   Actor
	rules   Rules
	notices noticePoster
}

// As returns a client acting on behalf of actor under the given rules.
func (s *RedisStore) As(actor Actor, rules Rules, notices noticePoster) *Client {
	if rules == nil {
		rules = DefaultRules
	}
	return &Client{store: s, actor: actor, rules: rules, notices: notices}
}

func (c *Client) Actor() Actor {
	return c.actor
}

func (c *Client) Write(ctx context.Context, path string, value any) {
	if !c.rules(OpWrite, path, c.actor) {
		c.deny(path)
		return
	}
	if err := c.store.Write(ctx, path, value); err != nil {
		c.fail(path, err)
	}
}

// Push generates the key client-side and returns it immediately; whether
// the value actually lands is only observable through a subscription.
func (c *Client) Push(ctx context.Context, path string, value any) string {
	key := c.store.ids.next(time.Now())
	if !c.rules(OpPush, path, c.actor) {
		c.deny(path)
		return key
	}
	if err := c.store.Write(ctx, path+"/"+key, value); err != nil {
		c.fail(path, err)
	}
	return key
}

func (c *Client) Remove(ctx context.Context, path string) {
	if !c.rules(OpRemove, path, c.actor) {
		c.deny(path)
		return
	}
	if err := c.store.Remove(ctx, path); err != nil {
		c.fail(path, err)
	}
}

func (c *Client) Get(ctx context.Context, path string) (json.RawMessage, error) {
	return c.store.Get(ctx, path)
}

func (c *Client) Subscribe(ctx context.Context, path string) (*Subscription, error) {
	return c.store.Subscribe(ctx, path)
}

func (c *Client) deny(path string) {
	if c.notices != nil {
		c.notices.Post("Permission denied", "The chair has not granted you access to "+path)
	}
}

func (c *Client) fail(path string, err error) {
	if c.notices != nil {
		c.notices.Post("Write failed", err.Error())
	}
}
