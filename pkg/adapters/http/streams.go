package http

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aretw0/automata/internal/logging"
	"github.com/aretw0/automata/pkg/domain"
)

// streamBuffer is how many diffs a slow subscriber may lag behind.
const streamBuffer = 16

// StreamManager fans session diffs out to SSE subscribers.
// Publish has the session.DiffListener signature.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan *domain.SimulationDiff]struct{} // SessionID -> Set of Channels
	logger      *slog.Logger
}

// NewStreamManager creates an empty manager. A nil logger discards output.
func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StreamManager{
		subscribers: make(map[string]map[chan *domain.SimulationDiff]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a channel for sessionID. The returned func unsubscribes
// and closes the channel.
func (sm *StreamManager) Subscribe(sessionID string) (<-chan *domain.SimulationDiff, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan *domain.SimulationDiff, streamBuffer)
	if _, ok := sm.subscribers[sessionID]; !ok {
		sm.subscribers[sessionID] = make(map[chan *domain.SimulationDiff]struct{})
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

// Publish delivers diff to every subscriber of its session without blocking.
func (sm *StreamManager) Publish(ctx context.Context, diff *domain.SimulationDiff) {
	if diff == nil {
		return
	}
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	subs := sm.subscribers[diff.SessionID]
	sm.logger.DebugContext(ctx, "stream publish", "session_id", diff.SessionID, "subscribers", len(subs))
	for ch := range subs {
		select {
		case ch <- diff:
		default:
			// Drop message if channel is full (slow client)
			sm.logger.WarnContext(ctx, "SSE: Client buffer full, dropping diff", "session_id", diff.SessionID)
		}
	}
}

// Subscribers counts the open streams of a session.
func (sm *StreamManager) Subscribers(sessionID string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[sessionID])
}
