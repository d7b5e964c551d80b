package domain

import (
	"slices"
)

// Key addresses a single deterministic move.
type Key struct {
	State  string
	Symbol string
}

// TransitionTable is a tagged variant: a value is either a DFATable or an
// NFATable, chosen when the automaton is built and never mixed.
type TransitionTable interface {
	// Mode reports which variant the table is.
	Mode() Mode
	// Len counts declared (state, symbol) entries.
	Len() int

	isTransitionTable()
}

// DFATable maps (state, symbol) to exactly one successor.
type DFATable map[Key]string

func (DFATable) Mode() Mode         { return ModeDFA }
func (t DFATable) Len() int         { return len(t) }
func (DFATable) isTransitionTable() {}

// Next returns the successor, ok is false when no move is defined (dead end).
func (t DFATable) Next(state, symbol string) (string, bool) {
	next, ok := t[Key{State: state, Symbol: symbol}]
	return next, ok
}

// AsNFA views a deterministic table as a nondeterministic one.
func (t DFATable) AsNFA() NFATable {
	out := make(NFATable, len(t))
	for k, next := range t {
		out.Add(k.State, k.Symbol, next)
	}
	return out
}

// NFATable maps state -> symbol (Epsilon included) -> set of successors.
type NFATable map[string]map[string]StateSet

func (NFATable) Mode() Mode         { return ModeNFA }
func (NFATable) isTransitionTable() {}

func (t NFATable) Len() int {
	n := 0
	for _, bySymbol := range t {
		n += len(bySymbol)
	}
	return n
}

// Add merges targets into the (state, symbol) entry. Repeated calls union.
func (t NFATable) Add(state, symbol string, targets ...string) {
	bySymbol, ok := t[state]
	if !ok {
		bySymbol = make(map[string]StateSet)
		t[state] = bySymbol
	}
	set, ok := bySymbol[symbol]
	if !ok {
		set = make(StateSet, len(targets))
		bySymbol[symbol] = set
	}
	for _, target := range targets {
		set.Add(target)
	}
}

// Targets returns the successors of (state, symbol). The result must not be mutated.
func (t NFATable) Targets(state, symbol string) StateSet {
	return t[state][symbol]
}

// Automaton is a validated finite automaton.
// Build one through the validator; the zero value is not usable.
type Automaton struct {
	// States in declaration order.
	States []string
	// Alphabet in declaration order, never containing Epsilon.
	Alphabet []string
	// Start is the single initial state.
	Start string
	// Accept is a non-empty subset of States.
	Accept StateSet
	// Transitions is either a DFATable or an NFATable.
	Transitions TransitionTable
}

// Mode is derived from the transition table variant.
func (a *Automaton) Mode() Mode {
	if a == nil || a.Transitions == nil {
		return ""
	}
	return a.Transitions.Mode()
}

// HasState reports whether s was declared.
func (a *Automaton) HasState(s string) bool {
	return slices.Contains(a.States, s)
}

// HasSymbol reports whether sym is in the alphabet.
func (a *Automaton) HasSymbol(sym string) bool {
	return slices.Contains(a.Alphabet, sym)
}

// Accepts reports whether any member of set is accepting.
func (a *Automaton) Accepts(set StateSet) bool {
	return a.Accept.Intersects(set)
}

// DFA returns the deterministic table when the automaton is a DFA.
func (a *Automaton) DFA() (DFATable, bool) {
	t, ok := a.Transitions.(DFATable)
	return t, ok
}

// NFA returns a nondeterministic view of the table; deterministic tables are converted.
func (a *Automaton) NFA() NFATable {
	switch t := a.Transitions.(type) {
	case NFATable:
		return t
	case DFATable:
		return t.AsNFA()
	default:
		return NFATable{}
	}
}

// Ordered returns the members of set following declaration order.
// Members that are not declared states are appended in lexical order.
func (a *Automaton) Ordered(set StateSet) []string {
	out := make([]string, 0, len(set))
	seen := make(StateSet, len(set))
	for _, s := range a.States {
		if set.Has(s) {
			out = append(out, s)
			seen.Add(s)
		}
	}
	for _, s := range set.Sorted() {
		if !seen.Has(s) {
			out = append(out, s)
		}
	}
	return out
}

// Missing lists the (state, symbol) pairs a DFA leaves undefined.
// A complete DFA returns nil; NFAs always return nil.
func (a *Automaton) Missing() []Key {
	table, ok := a.DFA()
	if !ok {
		return nil
	}
	var missing []Key
	for _, s := range a.States {
		for _, sym := range a.Alphabet {
			if _, ok := table.Next(s, sym); !ok {
				missing = append(missing, Key{State: s, Symbol: sym})
			}
		}
	}
	return missing
}
