// Package timer drives one shared countdown clock against its document
// store path. Every client runs its own engine; the store serializes the
// racing writes and the subscription echo keeps them converged.
package timer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"gavel/api/internal/committee"
	"gavel/api/internal/docstore"
)

// store is the slice of the document store client the engine needs.
type store interface {
	Get(ctx context.Context, path string) (json.RawMessage, error)
	Write(ctx context.Context, path string, value any)
	Subscribe(ctx context.Context, path string) (*docstore.Subscription, error)
}

// Engine reconciles a local 1 Hz tick with the authoritative remote timer.
// The local clock never updates its own display state: every transition
// round-trips through the store and lands via the subscription echo.
type Engine struct {
	store    store
	path     string
	interval time.Duration

	mu    sync.Mutex
	last  committee.TimerState
	known bool
}

func New(store store, path string, interval time.Duration) *Engine {
	if interval <= 0 {
		interval = time.Second
	}
	return &Engine{store: store, path: path, interval: interval}
}

// Run subscribes to the timer path and ticks until ctx is cancelled. The
// subscription and the ticker are both released on every exit path.
func (e *Engine) Run(ctx context.Context) error {
	sub, err := e.store.Subscribe(ctx, e.path)
	if err != nil {
		return fmt.Errorf("subscribe timer %s: %w", e.path, err)
	}
	defer sub.Close()

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-sub.Updates():
			if !ok {
				return nil
			}
			e.apply(snap)
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

// apply installs the freshest remote snapshot. The next tick computes from
// this value, never from a stale local copy, so two clients ticking the
// same timer cannot diverge.
func (e *Engine) apply(snap json.RawMessage) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if snap == nil {
		e.known = false
		e.last = committee.TimerState{}
		return
	}
	var state committee.TimerState
	if err := json.Unmarshal(snap, &state); err != nil {
		log.Printf("timer: decode state at %s: %v", e.path, err)
		return
	}
	e.last = state
	e.known = true
}

func (e *Engine) tick(ctx context.Context) {
	e.mu.Lock()
	state, known := e.last, e.known
	e.mu.Unlock()
	if !known || !state.Ticking {
		return
	}
	e.store.Write(ctx, e.path, Advance(state))
}

// Advance is one second of progress.
func Advance(t committee.TimerState) committee.TimerState {
	t.Elapsed++
	t.Remaining--
	return t
}

// Toggle flips the timer between stopped and running. It writes the current
// state with ticking inverted and leaves the display to the subscription
// echo; elapsed and remaining are untouched. Before the first echo it reads
// the store once, so a toggle never resets a timer another client set up.
func (e *Engine) Toggle(ctx context.Context) {
	e.mu.Lock()
	state, known := e.last, e.known
	e.mu.Unlock()
	if !known {
		state = e.fetch(ctx)
	}
	state.Ticking = !state.Ticking
	e.store.Write(ctx, e.path, state)
}

// fetch reads the remote state directly, seeding the local copy. The default
// timer only applies when the path holds nothing at all.
func (e *Engine) fetch(ctx context.Context) committee.TimerState {
	raw, err := e.store.Get(ctx, e.path)
	if err != nil {
		log.Printf("timer: read state at %s: %v", e.path, err)
		return committee.DefaultTimer()
	}
	if raw == nil {
		return committee.DefaultTimer()
	}
	var state committee.TimerState
	if err := json.Unmarshal(raw, &state); err != nil {
		log.Printf("timer: decode state at %s: %v", e.path, err)
		return committee.DefaultTimer()
	}
	e.mu.Lock()
	e.last = state
	e.known = true
	e.mu.Unlock()
	return state
}

// SetDuration resets the timer to amount of the given unit while stopped.
// A non-numeric or non-positive amount is a no-op: prior state stays put.
func (e *Engine) SetDuration(ctx context.Context, amount string, unit committee.Unit) {
	parsed, err := strconv.ParseFloat(amount, 64)
	if err != nil || parsed <= 0 {
		return
	}
	e.store.Write(ctx, e.path, committee.TimerState{
		Elapsed:   0,
		Remaining: int(parsed * float64(unit.Seconds())),
		Ticking:   false,
	})
}

// Snapshot is the last state echoed by the store; ok is false before the
// first delivery.
func (e *Engine) Snapshot() (committee.TimerState, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last, e.known
}

// Format renders a timer as {sign}{minutes}:{seconds}, seconds zero padded.
func Format(t committee.TimerState) string {
	sign := ""
	rem := t.Remaining
	if rem < 0 {
		sign = "-"
		rem = -rem
	}
	return fmt.Sprintf("%s%d:%02d", sign, rem/60, rem%60)
}

// Percent is the remaining share of the original duration, for progress
// display. Zero when elapsed and remaining are both zero.
func Percent(t committee.TimerState) float64 {
	total := t.Remaining + t.Elapsed
	if total == 0 {
		return 0
	}
	return float64(t.Remaining) / float64(total) * 100
}
