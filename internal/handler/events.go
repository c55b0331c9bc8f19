package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/antmikinka/cheating-daddy/internal/domain"
)

// keepAliveInterval is how often idle SSE connections get a comment ping.
const keepAliveInterval = 10 * time.Second

type event struct {
	Name string
	Data []byte
}

// EventStream broadcasts the routing layer's push notifications to every
// connected UI shell over server-sent events. It implements
// session.Notifier; broadcasts never block the routing layer - a subscriber
// that cannot keep up loses events rather than stalling a send.
type EventStream struct {
	logger *slog.Logger

	mu   sync.Mutex
	subs map[chan event]struct{}
}

func NewEventStream(logger *slog.Logger) *EventStream {
	return &EventStream{
		logger: logger,
		subs:   make(map[chan event]struct{}),
	}
}

func (s *EventStream) SessionInitializing(inProgress bool) {
	s.broadcast("session-initializing", inProgress)
}

func (s *EventStream) Status(status string) {
	s.broadcast("update-status", status)
}

func (s *EventStream) Response(text string) {
	s.broadcast("update-response", text)
}

func (s *EventStream) TurnSaved(conv domain.Conversation, turn domain.Turn) {
	s.broadcast("save-conversation-turn", map[string]any{
		"sessionId":   conv.SessionID,
		"turn":        turn,
		"fullHistory": conv.Turns,
	})
}

func (s *EventStream) broadcast(name string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		s.logger.Error("failed to encode event", "event", name, "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- event{Name: name, Data: payload}:
		default:
		}
	}
}

func (s *EventStream) subscribe() chan event {
	ch := make(chan event, 32)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()
	return ch
}

func (s *EventStream) unsubscribe(ch chan event) {
	s.mu.Lock()
	delete(s.subs, ch)
	s.mu.Unlock()
}

// ServeHTTP streams events until the client disconnects.
func (s *EventStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	ch := s.subscribe()
	defer s.unsubscribe(ch)

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case ev := <-ch:
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, ev.Data); err != nil {
				return
			}
			flusher.Flush()
		case <-keepAlive.C:
			// SSE comment line; clients ignore it, proxies stay open.
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
