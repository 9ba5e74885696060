package main

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Event is one board mutation pushed to live subscribers.
type Event struct {
	Type    string `json:"type"`
	Entity  string `json:"entity"`
	BoardID int64  `json:"board_id"`
	ID      int64  `json:"id,omitempty"`
	ActorID int64  `json:"actor_id,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

// EventBus fans board events out to SSE subscribers in this process.
type EventBus struct {
	mu   sync.RWMutex
	subs map[int64]map[chan []byte]struct{}
}

func NewEventBus() *EventBus { return &EventBus{subs: make(map[int64]map[chan []byte]struct{})} }

func (b *EventBus) Subscribe(boardID int64) (ch chan []byte, cancel func()) {
	ch = make(chan []byte, 16)
	b.mu.Lock()
	if b.subs[boardID] == nil {
		b.subs[boardID] = make(map[chan []byte]struct{})
	}
	b.subs[boardID][ch] = struct{}{}
	b.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			if subs, ok := b.subs[boardID]; ok {
				delete(subs, ch)
				if len(subs) == 0 {
					delete(b.subs, boardID)
				}
			}
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Publish never blocks: a subscriber whose buffer is full misses the event.
func (b *EventBus) Publish(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs[ev.BoardID] {
		select {
		case ch <- data:
		default:
		}
	}
}

func (b *EventBus) subscribers(boardID int64) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[boardID])
}

// ServeSSE streams events for one board until the client goes away.
func (b *EventBus) ServeSSE(w http.ResponseWriter, r *http.Request, boardID int64) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "stream unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// the stream outlives the server write timeout
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	ch, cancel := b.Subscribe(boardID)
	defer cancel()

	_, _ = w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	ticker := time.NewTicker(25 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			// heartbeat for proxies
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write([]byte("data: "))
			_, _ = w.Write(msg)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()
		}
	}
}
