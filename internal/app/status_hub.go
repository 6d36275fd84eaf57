package app

import (
	"sync"

	"moral-quiz-service/internal/domain"
)

// StatusHub fans purchase status changes out to subscribers of a checkout session.
type StatusHub struct {
	mu          sync.Mutex
	subscribers map[string]map[chan domain.PurchaseStatusView]struct{}
}

func NewStatusHub() *StatusHub {
	return &StatusHub{
		subscribers: make(map[string]map[chan domain.PurchaseStatusView]struct{}),
	}
}

// Subscribe returns a channel of status updates for sessionID.
// The caller must invoke the returned cancel function to avoid leaks.
func (h *StatusHub) Subscribe(sessionID string) (<-chan domain.PurchaseStatusView, func()) {
	ch := make(chan domain.PurchaseStatusView, 4)

	h.mu.Lock()
	subs, ok := h.subscribers[sessionID]
	if !ok {
		subs = make(map[chan domain.PurchaseStatusView]struct{})
		h.subscribers[sessionID] = subs
	}
	subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		subs, ok := h.subscribers[sessionID]
		if !ok {
			return
		}
		if _, ok := subs[ch]; ok {
			delete(subs, ch)
			close(ch)
		}
		if len(subs) == 0 {
			delete(h.subscribers, sessionID)
		}
	}
	return ch, cancel
}

// Publish delivers view to every subscriber of its session.
func (h *StatusHub) Publish(view domain.PurchaseStatusView) {
	if h == nil || view.SessionID == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers[view.SessionID] {
		select {
		case ch <- view:
		default:
			// slow subscriber: drop the oldest update so the newest always lands
			select {
			case <-ch:
			default:
			}
			ch <- view
		}
	}
}

// Subscribers reports how many listeners a session has.
func (h *StatusHub) Subscribers(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers[sessionID])
}
