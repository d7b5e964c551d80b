package runtime

import (
	"log/slog"
	"time"

	"github.com/aretw0/automata/pkg/domain"
	"github.com/aretw0/automata/pkg/ports"
)

// Option configures a Simulator.
type Option func(*Simulator)

// WithLogger sets the logger used for step tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Simulator) {
		s.logger = logger
	}
}

// WithLifecycleHooks registers observability callbacks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(s *Simulator) {
		s.hooks = s.hooks.Merge(hooks)
	}
}

// WithHistory records an entry every time a run finishes.
func WithHistory(recorder ports.HistoryRecorder) Option {
	return func(s *Simulator) {
		s.history = recorder
	}
}

// WithRunID tags the simulation. Callers that restart runs use it to detect
// results that belong to a previous run.
func WithRunID(id uint64) Option {
	return func(s *Simulator) {
		s.sim.RunID = id
	}
}

// WithClock overrides time.Now for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Simulator) {
		s.now = now
	}
}
