package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"solation/core/events"
	"solation/core/types"
)

const (
	wsWriteTimeout   = 10 * time.Second
	hubSubscriberBuf = 64
)

// StreamEvent is the payload pushed to websocket subscribers.
type StreamEvent struct {
	Sequence   uint64            `json:"sequence"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Hub fans committed events out to live subscribers. Slow subscribers lose
// events rather than blocking the emitter.
type Hub struct {
	mu      sync.Mutex
	seq     uint64
	nextID  uint64
	subs    map[uint64]*subscriber
	dropped uint64
}

type subscriber struct {
	ch     chan StreamEvent
	filter map[string]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]*subscriber)}
}

// Emit implements events.Emitter.
func (h *Hub) Emit(evt events.Event) {
	if h == nil || evt == nil || evt.Event() == nil {
		return
	}
	raw := evt.Event()
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seq++
	out := StreamEvent{Sequence: h.seq, Type: raw.Type, Attributes: cloneAttrs(raw)}
	for _, sub := range h.subs {
		if len(sub.filter) > 0 {
			if _, ok := sub.filter[out.Type]; !ok {
				continue
			}
		}
		select {
		case sub.ch <- out:
		default:
			h.dropped++
		}
	}
}

func cloneAttrs(evt *types.Event) map[string]string {
	out := make(map[string]string, len(evt.Attributes))
	for k, v := range evt.Attributes {
		out[k] = v
	}
	return out
}

// Subscribe registers a subscriber for the given event types, or all events
// when none are given. The returned cancel func closes the channel.
func (h *Hub) Subscribe(eventTypes ...string) (<-chan StreamEvent, func()) {
	sub := &subscriber{ch: make(chan StreamEvent, hubSubscriberBuf)}
	for _, t := range eventTypes {
		if t = strings.TrimSpace(t); t != "" {
			if sub.filter == nil {
				sub.filter = make(map[string]struct{})
			}
			sub.filter[t] = struct{}{}
		}
	}
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = sub
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			close(sub.ch)
			h.mu.Unlock()
		})
	}
	return sub.ch, cancel
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Dropped returns how many deliveries were skipped because a subscriber was full.
func (h *Hub) Dropped() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}

func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	var filter []string
	if raw := strings.TrimSpace(r.URL.Query().Get("types")); raw != "" {
		filter = strings.Split(raw, ",")
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.originPatterns})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")

	updates, cancel := s.hub.Subscribe(filter...)
	defer cancel()

	ctx := conn.CloseRead(r.Context())
	if err := streamEvents(ctx, conn, updates); err != nil {
		if status := websocket.CloseStatus(err); status == -1 {
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func streamEvents(ctx context.Context, conn *websocket.Conn, updates <-chan StreamEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			data, err := json.Marshal(update)
			if err != nil {
				return err
			}
			writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err = conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}
