package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/go-chi/chi/v5"
)

// subscriberBuffer is how many diffs a slow SSE client may lag behind before drops.
const subscriberBuffer = 10

// StreamManager fans session diffs out to active SSE connections.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan []byte]struct{} // SessionID -> Set of Channels
	logger      *slog.Logger
}

// NewStreamManager creates an empty StreamManager.
func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StreamManager{
		subscribers: make(map[string]map[chan []byte]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a listener for sessionID. The returned func unsubscribes and closes the channel.
func (sm *StreamManager) Subscribe(sessionID string) (<-chan []byte, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan []byte, subscriberBuffer)
	if _, ok := sm.subscribers[sessionID]; !ok {
		sm.subscribers[sessionID] = make(map[chan []byte]struct{})
	}
	sm.subscribers[sessionID][ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			sm.mu.Lock()
			defer sm.mu.Unlock()
			if subs, ok := sm.subscribers[sessionID]; ok {
				delete(subs, ch)
				close(ch)
				if len(subs) == 0 {
					delete(sm.subscribers, sessionID)
				}
			}
		})
	}
}

// Subscribers reports how many listeners sessionID has.
func (sm *StreamManager) Subscribers(sessionID string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[sessionID])
}

// Publish has the session.ChangeListener signature.
func (sm *StreamManager) Publish(ctx context.Context, sessionID string, diff *domain.StateDiff) {
	payload, err := json.Marshal(diff)
	if err != nil {
		sm.logger.Error("SSE: diff encode failed", "session_id", sessionID, "err", err)
		return
	}
	sm.Broadcast(sessionID, payload)
}

// Broadcast never blocks: a full client buffer drops the message.
func (sm *StreamManager) Broadcast(sessionID string, msg []byte) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[sessionID] {
		select {
		case ch <- msg:
		default:
			sm.logger.Warn("SSE: client buffer full, dropping message", "session_id", sessionID)
		}
	}
}

// SubscribeEvents handles GET /sessions/{id}/events (SSE).
// The optional watch filter (variables, history, position) skips diffs that touch none of them.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	sessionID := chi.URLParam(r, "id")
	if _, _, err := s.Service.Get(r.Context(), sessionID); err != nil {
		s.writeError(w, r, err)
		return
	}

	var watch []string
	if raw := r.URL.Query().Get("watch"); raw != "" {
		for _, f := range strings.Split(raw, ",") {
			watch = append(watch, strings.TrimSpace(f))
		}
	}

	ch, cancel := s.Streams.Subscribe(sessionID)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()
	s.Logger.Info("SSE: subscribed", "session_id", sessionID)

	for {
		select {
		case <-r.Context().Done():
			s.Logger.Info("SSE: client disconnected", "session_id", sessionID)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if len(watch) > 0 && !matchesWatch(msg, watch) {
				continue
			}
			fmt.Fprintf(w, "event: diff\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func matchesWatch(msg []byte, watch []string) bool {
	var diff domain.StateDiff
	if err := json.Unmarshal(msg, &diff); err != nil {
		return true
	}
	for _, field := range watch {
		switch field {
		case "variables":
			if len(diff.Variables) > 0 {
				return true
			}
		case "history":
			if len(diff.Appended) > 0 {
				return true
			}
		case "position":
			if diff.CurrentNodeID != nil || diff.Suspended != nil {
				return true
			}
		}
	}
	return false
}
