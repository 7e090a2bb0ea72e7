// Package progress fans pipeline stage events out to the websocket
// connections of a session.
package progress

import (
	"sync"

	"github.com/mrsingh-rishi/articulate/metrics"
	"github.com/mrsingh-rishi/articulate/types"
)

// BufferSize is the per-subscriber backlog. Events beyond it are dropped.
const BufferSize = 16

type Subscription struct {
	C         <-chan types.StageEvent
	ch        chan types.StageEvent
	sessionID string
	hub       *Hub
	once      sync.Once
}

// Close unsubscribes and closes C.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s)
	})
}

type Hub struct {
	mu      sync.Mutex
	subs    map[string]map[*Subscription]struct{}
	metrics *metrics.Metrics
}

func NewHub(m *metrics.Metrics) *Hub {
	if m == nil {
		m = metrics.Default
	}
	return &Hub{subs: make(map[string]map[*Subscription]struct{}), metrics: m}
}

func (h *Hub) Subscribe(sessionID string) *Subscription {
	ch := make(chan types.StageEvent, BufferSize)
	sub := &Subscription{C: ch, ch: ch, sessionID: sessionID, hub: h}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[*Subscription]struct{})
	}
	h.subs[sessionID][sub] = struct{}{}
	h.metrics.ProgressSubscribers.Inc()
	return sub
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.subs[sub.sessionID]
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(h.subs, sub.sessionID)
	}
	close(sub.ch)
	h.metrics.ProgressSubscribers.Dec()
}

// Publish delivers ev to every subscriber of its session without blocking.
// It returns the number of subscribers that received it.
func (h *Hub) Publish(ev types.StageEvent) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	delivered := 0
	for sub := range h.subs[ev.SessionID] {
		select {
		case sub.ch <- ev:
			delivered++
		default:
		}
	}
	return delivered
}

// Notifier adapts the hub to the pipeline's notification hook.
func (h *Hub) Notifier() types.Notifier {
	return func(ev types.StageEvent) {
		h.Publish(ev)
	}
}

// Subscribers returns the number of open subscriptions for a session.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[sessionID])
}
