package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aretw0/automata/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// History implements ports.HistoryRecorder with a capped Redis list, so
// every replica sees the same recent computations.
type History struct {
	client *backend.Client
	key    string
	limit  int
}

// NewHistory keeps at most limit entries under prefix+"history".
// A limit below 1 uses domain.DefaultHistoryLimit.
func NewHistory(client *backend.Client, prefix string, limit int) *History {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if limit < 1 {
		limit = domain.DefaultHistoryLimit
	}
	return &History{client: client, key: prefix + "history", limit: limit}
}

// Record appends the entry and trims the list to the newest limit entries.
func (h *History) Record(ctx context.Context, entry domain.HistoryEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal history entry: %w", err)
	}

	pipe := h.client.TxPipeline()
	pipe.RPush(ctx, h.key, data)
	pipe.LTrim(ctx, h.key, int64(-h.limit), -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record history: %w", err)
	}
	return nil
}

// List returns the retained entries, oldest first.
func (h *History) List(ctx context.Context) ([]domain.HistoryEntry, error) {
	raw, err := h.client.LRange(ctx, h.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	entries := make([]domain.HistoryEntry, 0, len(raw))
	for _, item := range raw {
		var e domain.HistoryEntry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal history entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
