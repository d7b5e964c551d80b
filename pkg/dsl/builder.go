package dsl

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/automata/internal/validator"
	"github.com/aretw0/automata/pkg/domain"
)

// Builder collects states and moves and renders them as a Definition.
type Builder struct {
	mode     domain.Mode
	order    []string
	states   map[string]*StateBuilder
	alphabet []string
	fixed    bool
	start    string
	errs     []error
}

// New creates a builder for the given mode.
func New(mode domain.Mode) *Builder {
	return &Builder{mode: mode, states: make(map[string]*StateBuilder)}
}

// DFA is shorthand for New(domain.ModeDFA).
func DFA() *Builder { return New(domain.ModeDFA) }

// NFA is shorthand for New(domain.ModeNFA).
func NFA() *Builder { return New(domain.ModeNFA) }

// Alphabet fixes the input symbols and their order. Without it the alphabet
// is every non-epsilon symbol used by On, in order of first use.
func (b *Builder) Alphabet(symbols ...string) *Builder {
	b.alphabet = append([]string(nil), symbols...)
	b.fixed = true
	return b
}

// State returns the builder for id, declaring the state on first use.
func (b *Builder) State(id string) *StateBuilder {
	if sb, ok := b.states[id]; ok {
		return sb
	}
	sb := &StateBuilder{id: id, builder: b}
	b.states[id] = sb
	b.order = append(b.order, id)
	return sb
}

// Definition renders the raw text fields without validating them.
func (b *Builder) Definition() domain.Definition {
	var accept, lines []string
	for _, id := range b.order {
		sb := b.states[id]
		if sb.accept {
			accept = append(accept, id)
		}
		for _, m := range sb.moves {
			lines = append(lines, fmt.Sprintf("%s,%s,%s", id, m.symbol, strings.Join(m.targets, ";")))
		}
	}
	return domain.Definition{
		Mode:         b.mode,
		States:       strings.Join(b.order, ","),
		Alphabet:     strings.Join(b.symbols(), ","),
		StartState:   b.start,
		AcceptStates: strings.Join(accept, ","),
		Transitions:  strings.Join(lines, "\n"),
	}
}

// Build renders the definition and checks it with the same rules the engine
// applies, so a definition returned without error always loads.
func (b *Builder) Build(opts ...validator.Option) (domain.Definition, error) {
	if len(b.errs) > 0 {
		return domain.Definition{}, fmt.Errorf("%w: %w", domain.ErrInvalidDefinition, errors.Join(b.errs...))
	}
	def := b.Definition()
	if _, err := validator.Parse(def, opts...); err != nil {
		return domain.Definition{}, err
	}
	return def, nil
}

func (b *Builder) symbols() []string {
	if b.fixed {
		return b.alphabet
	}
	seen := make(map[string]bool)
	var out []string
	for _, id := range b.order {
		for _, m := range b.states[id].moves {
			if m.symbol == domain.Epsilon || seen[m.symbol] {
				continue
			}
			seen[m.symbol] = true
			out = append(out, m.symbol)
		}
	}
	return out
}

// StateBuilder configures one state.
type StateBuilder struct {
	id      string
	builder *Builder
	accept  bool
	moves   []move
}

type move struct {
	symbol  string
	targets []string
}

// Start marks the state as the start state, replacing any earlier one.
func (s *StateBuilder) Start() *StateBuilder {
	s.builder.start = s.id
	return s
}

// Accept marks the state as accepting.
func (s *StateBuilder) Accept() *StateBuilder {
	s.accept = true
	return s
}

// On adds a move on symbol. A DFA move takes exactly one target; NFA moves
// on the same symbol accumulate. Targets are declared as states.
func (s *StateBuilder) On(symbol string, targets ...string) *StateBuilder {
	b := s.builder
	if b.mode == domain.ModeDFA {
		switch {
		case symbol == domain.Epsilon:
			b.errs = append(b.errs, fmt.Errorf("state %s: epsilon moves need an NFA", s.id))
			return s
		case len(targets) != 1:
			b.errs = append(b.errs, fmt.Errorf("state %s: DFA move on %q needs exactly one target, got %d", s.id, symbol, len(targets)))
			return s
		}
	}
	for _, t := range targets {
		b.State(t)
	}
	for i := range s.moves {
		if s.moves[i].symbol == symbol {
			if b.mode == domain.ModeDFA {
				b.errs = append(b.errs, fmt.Errorf("state %s: duplicate DFA move on %q", s.id, symbol))
				return s
			}
			s.moves[i].targets = appendNew(s.moves[i].targets, targets...)
			return s
		}
	}
	s.moves = append(s.moves, move{symbol: symbol, targets: appendNew(nil, targets...)})
	return s
}

// Epsilon adds an NFA move that consumes no input.
func (s *StateBuilder) Epsilon(targets ...string) *StateBuilder {
	return s.On(domain.Epsilon, targets...)
}

// State continues with another state, for chaining.
func (s *StateBuilder) State(id string) *StateBuilder {
	return s.builder.State(id)
}

func appendNew(list []string, items ...string) []string {
	for _, it := range items {
		dup := false
		for _, have := range list {
			if have == it {
				dup = true
				break
			}
		}
		if !dup {
			list = append(list, it)
		}
	}
	return list
}
