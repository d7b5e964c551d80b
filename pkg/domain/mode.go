package domain

import (
	"fmt"
	"strings"
)

// Mode selects which execution engine drives a simulation.
type Mode string

const (
	ModeDFA Mode = "dfa" // Deterministic: one successor per (state, symbol)
	ModeNFA Mode = "nfa" // Nondeterministic, epsilon moves allowed
)

// Epsilon is the empty symbol. It is never a member of an alphabet.
const Epsilon = ""

// EpsilonGlyph is the printable spelling of Epsilon accepted in NFA definitions.
const EpsilonGlyph = "ε"

// ParseMode normalizes user supplied mode names ("DFA", "e-nfa", "ε-NFA"...).
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dfa":
		return ModeDFA, nil
	case "nfa", "enfa", "e-nfa", "ε-nfa", "epsilon-nfa":
		return ModeNFA, nil
	case "":
		return "", fmt.Errorf("%w: mode is required", ErrInvalidDefinition)
	default:
		return "", fmt.Errorf("%w: unknown mode %q (expected dfa or nfa)", ErrInvalidDefinition, s)
	}
}

func (m Mode) String() string {
	return string(m)
}

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	return m == ModeDFA || m == ModeNFA
}
