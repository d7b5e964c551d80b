package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/automata/internal/logging"
	"github.com/aretw0/automata/internal/validator"
	"github.com/aretw0/automata/pkg/domain"
	"github.com/aretw0/automata/pkg/ports"
)

// Simulator walks an automaton over an input one symbol at a time and keeps a
// trace so steps can be undone. A Simulator has a single owner and is not
// safe for concurrent use; see pkg/session for shared access.
//
// Forward, Back and Reset never fail: calls that do not apply in the current
// phase leave the simulation unchanged.
type Simulator struct {
	automaton *domain.Automaton
	dfa       domain.DFATable
	nfa       domain.NFATable
	input     []rune
	sim       domain.Simulation

	hooks   domain.LifecycleHooks
	history ports.HistoryRecorder
	logger  *slog.Logger
	now     func() time.Time
}

// NewSimulator prepares a run of input on a. An empty mode follows the
// automaton. DFAs may run in NFA mode; NFAs cannot run in DFA mode.
func NewSimulator(ctx context.Context, a *domain.Automaton, mode domain.Mode, input string, opts ...Option) (*Simulator, error) {
	s, err := newSimulator(a, mode, input, opts...)
	if err != nil {
		return nil, err
	}
	s.start(ctx)
	return s, nil
}

// Initialize validates def and prepares a run. Validation errors are returned
// as produced by the validator and no simulator is created.
func Initialize(ctx context.Context, def domain.Definition, mode domain.Mode, input string, opts ...Option) (*Simulator, error) {
	if def.Mode == "" {
		def.Mode = mode
	}
	a, err := validator.Parse(def)
	if err != nil {
		return nil, err
	}
	return NewSimulator(ctx, a, mode, input, opts...)
}

// Resume rebuilds a simulator around a persisted simulation without replaying it.
func Resume(a *domain.Automaton, sim domain.Simulation, opts ...Option) (*Simulator, error) {
	s, err := newSimulator(a, sim.Mode, sim.Input, opts...)
	if err != nil {
		return nil, err
	}
	if sim.Status == domain.StatusUninitialized || sim.Status == "" {
		return nil, fmt.Errorf("resume run %d: simulation was never initialized", sim.RunID)
	}
	if sim.Position < 0 || sim.Position > len(s.input) || len(sim.Trace) != sim.Position+1 {
		return nil, fmt.Errorf("resume run %d: trace of length %d does not match position %d", sim.RunID, len(sim.Trace), sim.Position)
	}
	s.sim = sim.Clone()
	s.sim.Mode = s.mode()
	return s, nil
}

func newSimulator(a *domain.Automaton, mode domain.Mode, input string, opts ...Option) (*Simulator, error) {
	if a == nil || a.Transitions == nil {
		return nil, fmt.Errorf("%w: no automaton loaded", domain.ErrInvalidDefinition)
	}
	if mode == "" {
		mode = a.Mode()
	}

	s := &Simulator{
		automaton: a,
		input:     []rune(input),
		sim: domain.Simulation{
			Mode:   mode,
			Input:  input,
			Status: domain.StatusUninitialized,
		},
		logger: logging.NewNop(),
		now:    time.Now,
	}

	switch mode {
	case domain.ModeDFA:
		table, ok := a.DFA()
		if !ok {
			return nil, fmt.Errorf("%w: an %s cannot run in %s mode", domain.ErrModeMismatch, a.Mode(), mode)
		}
		s.dfa = table
	case domain.ModeNFA:
		s.nfa = a.NFA()
	default:
		return nil, fmt.Errorf("%w: unknown mode %q", domain.ErrModeMismatch, mode)
	}

	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Simulator) mode() domain.Mode {
	if s.dfa != nil {
		return domain.ModeDFA
	}
	return domain.ModeNFA
}

// Automaton returns the automaton being simulated.
func (s *Simulator) Automaton() *domain.Automaton {
	return s.automaton
}

// Snapshot returns a copy of the current simulation.
func (s *Simulator) Snapshot() domain.Simulation {
	return s.sim.Clone()
}

// Forward consumes the next input symbol.
func (s *Simulator) Forward(ctx context.Context) domain.Simulation {
	if s.sim.Status != domain.StatusReady || s.sim.Position >= len(s.input) {
		return s.Snapshot()
	}

	from := s.sim.Current
	symbol := string(s.input[s.sim.Position])
	next := s.move(from, symbol)

	s.sim.Position++
	s.sim.Current = next
	s.sim.Trace = append(s.sim.Trace, next.Clone())

	s.logger.Debug("simulator forward",
		"run_id", s.sim.RunID, "position", s.sim.Position, "symbol", symbol, "from", from.String(), "to", next.String())
	s.emitStep(ctx, domain.DirectionForward, symbol, from, next)

	switch {
	case next.Empty():
		s.sim.DeadEnd = true
		s.finish(ctx)
	case s.sim.Position == len(s.input):
		s.finish(ctx)
	}
	return s.Snapshot()
}

// Back undoes the last consumed symbol.
func (s *Simulator) Back(ctx context.Context) domain.Simulation {
	if s.sim.Status == domain.StatusUninitialized || s.sim.Position == 0 {
		return s.Snapshot()
	}

	from := s.sim.Current
	symbol := string(s.input[s.sim.Position-1])

	s.sim.Position--
	s.sim.Trace = s.sim.Trace[:s.sim.Position+1]
	s.sim.Current = s.sim.Trace[s.sim.Position].Clone()
	s.sim.Finished = false
	s.sim.Accepted = false
	s.sim.DeadEnd = false
	s.sim.Status = domain.StatusReady

	s.logger.Debug("simulator back", "run_id", s.sim.RunID, "position", s.sim.Position)
	s.emitStep(ctx, domain.DirectionBack, symbol, from, s.sim.Current)
	return s.Snapshot()
}

// Reset returns to the initial configuration of the same run.
func (s *Simulator) Reset(ctx context.Context) domain.Simulation {
	from := s.sim.Current
	s.start(ctx)
	s.emitStep(ctx, domain.DirectionReset, "", from, s.sim.Current)
	return s.Snapshot()
}

func (s *Simulator) start(ctx context.Context) {
	initial := domain.NewStateSet(s.automaton.Start)
	if s.nfa != nil {
		initial = Closure(initial, s.nfa)
	}

	s.sim = domain.Simulation{
		RunID:    s.sim.RunID,
		Mode:     s.mode(),
		Input:    string(s.input),
		Position: 0,
		Current:  initial,
		Trace:    []domain.StateSet{initial.Clone()},
		Status:   domain.StatusReady,
	}

	if s.hooks.OnRunStart != nil {
		s.hooks.OnRunStart(ctx, &domain.RunEvent{
			EventBase: s.event(domain.EventRunStart),
			Input:     s.sim.Input,
		})
	}

	if len(s.input) == 0 {
		s.finish(ctx)
	}
}

func (s *Simulator) move(from domain.StateSet, symbol string) domain.StateSet {
	if s.dfa == nil {
		return StepNFA(from, symbol, s.nfa)
	}
	next := make(domain.StateSet, 1)
	for state := range from {
		if to, ok := StepDFA(state, symbol, s.dfa); ok {
			next.Add(to)
		}
	}
	return next
}

func (s *Simulator) finish(ctx context.Context) {
	s.sim.Finished = true
	s.sim.Status = domain.StatusFinished
	s.sim.Accepted = !s.sim.DeadEnd && s.automaton.Accepts(s.sim.Current)

	s.logger.Debug("simulator finished",
		"run_id", s.sim.RunID, "accepted", s.sim.Accepted, "dead_end", s.sim.DeadEnd)

	if s.hooks.OnRunFinish != nil {
		s.hooks.OnRunFinish(ctx, &domain.RunEvent{
			EventBase: s.event(domain.EventRunFinish),
			Input:     s.sim.Input,
			Final:     s.sim.Current.Clone(),
			Accepted:  s.sim.Accepted,
			DeadEnd:   s.sim.DeadEnd,
		})
	}

	if s.history != nil {
		if err := s.history.Record(ctx, s.historyEntry()); err != nil {
			s.logger.Warn("failed to record history", "run_id", s.sim.RunID, "error", err)
		}
	}
}

func (s *Simulator) emitStep(ctx context.Context, dir domain.Direction, symbol string, from, to domain.StateSet) {
	if s.hooks.OnStep == nil {
		return
	}
	s.hooks.OnStep(ctx, &domain.StepEvent{
		EventBase: s.event(domain.EventStep),
		Direction: dir,
		Position:  s.sim.Position,
		Symbol:    symbol,
		From:      from.Clone(),
		To:        to.Clone(),
		DeadEnd:   dir == domain.DirectionForward && to.Empty(),
	})
}

func (s *Simulator) event(t domain.EventType) domain.EventBase {
	return domain.EventBase{
		Timestamp: s.now(),
		Type:      t,
		RunID:     s.sim.RunID,
		Mode:      s.sim.Mode,
	}
}

func (s *Simulator) historyEntry() domain.HistoryEntry {
	a := s.automaton
	return domain.HistoryEntry{
		Topic:     domain.TopicAutomata,
		Operation: strings.ToUpper(string(s.sim.Mode)) + " processing",
		Inputs: map[string]any{
			"states":        a.States,
			"alphabet":      a.Alphabet,
			"start_state":   a.Start,
			"accept_states": a.Ordered(a.Accept),
			"input_string":  s.sim.Input,
		},
		Answer: map[string]any{
			"accepted":     s.sim.Accepted,
			"final_states": a.Ordered(s.sim.Current),
			"dead_end":     s.sim.DeadEnd,
		},
		Formula:   Formula(s.sim),
		Timestamp: s.now(),
	}
}

// Formula renders a trace as "q0 --1--> q1 --0--> q2 (ACCEPTED)".
// Sets with more than one member print as {a,b}; an empty set prints as ∅.
func Formula(sim domain.Simulation) string {
	var b strings.Builder
	runes := sim.InputRunes()
	for i, set := range sim.Trace {
		if i > 0 {
			fmt.Fprintf(&b, " --%s--> ", string(runes[i-1]))
		}
		b.WriteString(formatSet(set))
	}
	switch {
	case !sim.Finished:
	case sim.Accepted:
		b.WriteString(" (ACCEPTED)")
	default:
		b.WriteString(" (REJECTED)")
	}
	return b.String()
}

func formatSet(set domain.StateSet) string {
	switch set.Len() {
	case 0:
		return "∅"
	case 1:
		return set.Sorted()[0]
	default:
		return set.String()
	}
}
