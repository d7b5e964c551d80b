package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventRunStart  EventType = "run_start"
	EventStep      EventType = "step"
	EventRunFinish EventType = "run_finish"
)

// Direction tells whether a step consumed a symbol or undid one.
type Direction string

const (
	DirectionForward Direction = "forward"
	DirectionBack    Direction = "back"
	DirectionReset   Direction = "reset"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	RunID     uint64    `json:"run_id"`
	Mode      Mode      `json:"mode"`
}

// RunEvent marks the start or the end of a run.
type RunEvent struct {
	EventBase
	Input    string   `json:"input"`
	Final    StateSet `json:"final,omitempty"`
	Accepted bool     `json:"accepted"`
	DeadEnd  bool     `json:"dead_end"`
}

// StepEvent describes a single move of the simulator.
type StepEvent struct {
	EventBase
	Direction Direction `json:"direction"`
	Position  int       `json:"position"`
	Symbol    string    `json:"symbol,omitempty"`
	From      StateSet  `json:"from"`
	To        StateSet  `json:"to"`
	DeadEnd   bool      `json:"dead_end,omitempty"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnRunStart  func(context.Context, *RunEvent)
	OnStep      func(context.Context, *StepEvent)
	OnRunFinish func(context.Context, *RunEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnRunStart:  chain(h.OnRunStart, other.OnRunStart),
		OnStep:      chain(h.OnStep, other.OnStep),
		OnRunFinish: chain(h.OnRunFinish, other.OnRunFinish),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
