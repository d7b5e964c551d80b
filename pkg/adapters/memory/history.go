package memory

import (
	"context"
	"sync"

	"github.com/aretw0/automata/pkg/domain"
)

// History implements ports.HistoryRecorder with a fixed size ring buffer.
// Safe for concurrent use.
type History struct {
	mu      sync.Mutex
	entries []domain.HistoryEntry
	next    int
	full    bool
}

// NewHistory keeps at most limit entries. A limit below 1 uses domain.DefaultHistoryLimit.
func NewHistory(limit int) *History {
	if limit < 1 {
		limit = domain.DefaultHistoryLimit
	}
	return &History{entries: make([]domain.HistoryEntry, limit)}
}

// Record stores the entry, overwriting the oldest one once full.
func (h *History) Record(ctx context.Context, entry domain.HistoryEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries[h.next] = entry
	h.next = (h.next + 1) % len(h.entries)
	if h.next == 0 {
		h.full = true
	}
	return nil
}

// List returns the retained entries, oldest first.
func (h *History) List(ctx context.Context) ([]domain.HistoryEntry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.full {
		return append([]domain.HistoryEntry{}, h.entries[:h.next]...), nil
	}
	out := make([]domain.HistoryEntry, 0, len(h.entries))
	out = append(out, h.entries[h.next:]...)
	out = append(out, h.entries[:h.next]...)
	return out, nil
}
