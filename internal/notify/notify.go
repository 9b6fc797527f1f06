// Package notify is the asynchronous failure side channel. Store writes
// are fire-and-forget; permission denials and transport errors land here,
// detached from their call sites, and the UI surfaces them.
package notify

import (
	"sync"
	"time"

	"gavel/api/internal/util"
)

// Notice is one user-visible failure. Identical header+message pairs
// collapse into a single notice whose count grows instead.
type Notice struct {
	ID       string    `json:"id"`
	Header   string    `json:"header"`
	Message  string    `json:"message"`
	Count    int       `json:"count"`
	PostedAt time.Time `json:"postedAt"`
}

type Notifier struct {
	mu      sync.Mutex
	byPair  map[string]string
	notices map[string]Notice
	order   []string
	subs    map[int]chan Notice
	next    int
}

func New() *Notifier {
	return &Notifier{
		byPair:  make(map[string]string),
		notices: make(map[string]Notice),
		subs:    make(map[int]chan Notice),
	}
}

// Post records a failure notice and broadcasts it to watchers.
func (n *Notifier) Post(header, message string) {
	n.mu.Lock()
	pair := header + "\x00" + message
	id, exists := n.byPair[pair]
	var notice Notice
	if exists {
		notice = n.notices[id]
		notice.Count++
		n.notices[id] = notice
	} else {
		notice = Notice{
			ID:       util.NewID("ntc"),
			Header:   header,
			Message:  message,
			Count:    1,
			PostedAt: time.Now(),
		}
		n.byPair[pair] = notice.ID
		n.notices[notice.ID] = notice
		n.order = append(n.order, notice.ID)
	}
	subs := make([]chan Notice, 0, len(n.subs))
	for _, ch := range n.subs {
		subs = append(subs, ch)
	}
	n.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- notice:
		default:
		}
	}
}

// Dismiss removes a single notice by id. Reposting the same header+message
// afterwards produces a fresh visible notice.
func (n *Notifier) Dismiss(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	notice, ok := n.notices[id]
	if !ok {
		return
	}
	delete(n.notices, id)
	delete(n.byPair, notice.Header+"\x00"+notice.Message)
	for i, ordered := range n.order {
		if ordered == id {
			n.order = append(n.order[:i], n.order[i+1:]...)
			break
		}
	}
}

// Active lists undismissed notices in posting order.
func (n *Notifier) Active() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Notice, 0, len(n.order))
	for _, id := range n.order {
		out = append(out, n.notices[id])
	}
	return out
}

// Watch streams notices as they are posted or bumped. The stop function
// must be called on teardown.
func (n *Notifier) Watch() (<-chan Notice, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := n.next
	n.next++
	ch := make(chan Notice, 16)
	n.subs[id] = ch

	stop := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if sub, ok := n.subs[id]; ok {
			delete(n.subs, id)
			close(sub)
		}
	}
	return ch, stop
}
