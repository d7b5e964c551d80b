package ports

import (
	"context"

	"github.com/aretw0/automata/pkg/domain"
)

// HistoryRecorder keeps the most recent completed computations.
// Implementations are bounded: once full, the oldest entry is evicted first.
type HistoryRecorder interface {
	// Record appends an entry, evicting the oldest one when the limit is reached.
	Record(ctx context.Context, entry domain.HistoryEntry) error

	// List returns the retained entries, oldest first.
	List(ctx context.Context) ([]domain.HistoryEntry, error)
}
