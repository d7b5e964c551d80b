package validator

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/aretw0/automata/internal/logging"
	"github.com/aretw0/automata/pkg/domain"
)

// DuplicatePolicy decides what happens when a DFA declares two different
// successors for the same (state, symbol).
type DuplicatePolicy string

const (
	DuplicatesOverwrite DuplicatePolicy = "overwrite" // Last declaration wins
	DuplicatesReject    DuplicatePolicy = "reject"    // Conflicting declarations are an error
)

// ParseDuplicatePolicy accepts "overwrite" (or empty) and "reject".
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch DuplicatePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", DuplicatesOverwrite:
		return DuplicatesOverwrite, nil
	case DuplicatesReject:
		return DuplicatesReject, nil
	default:
		return "", fmt.Errorf("unknown duplicate policy %q", s)
	}
}

type config struct {
	duplicates DuplicatePolicy
	logger     *slog.Logger
}

// Option configures Parse.
type Option func(*config)

// WithDuplicatePolicy sets the DFA duplicate transition policy.
func WithDuplicatePolicy(p DuplicatePolicy) Option {
	return func(c *config) {
		c.duplicates = p
	}
}

// WithLogger reports overwritten DFA transitions at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// Parse validates raw definition text and builds an Automaton.
// The first broken rule is returned as a *domain.ValidationError.
func Parse(def domain.Definition, opts ...Option) (*domain.Automaton, error) {
	cfg := config{duplicates: DuplicatesOverwrite, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}

	mode := def.Mode
	if mode == "" {
		mode = domain.ModeDFA
	}
	if !mode.Valid() {
		parsed, err := domain.ParseMode(string(mode))
		if err != nil {
			return nil, &domain.ValidationError{Field: "mode", Reason: err.Error()}
		}
		mode = parsed
	}

	states := splitList(def.States)
	alphabet := splitList(def.Alphabet)
	start := strings.TrimSpace(def.StartState)
	accept := splitList(def.AcceptStates)

	if len(states) == 0 {
		return nil, invalid("states", "please enter at least one state")
	}
	if len(alphabet) == 0 {
		return nil, invalid("alphabet", "please enter at least one symbol in the alphabet")
	}
	for _, sym := range alphabet {
		if sym == domain.EpsilonGlyph {
			return nil, invalid("alphabet", fmt.Sprintf("'%s' is reserved for epsilon and cannot be an alphabet symbol", sym))
		}
	}
	if start == "" {
		return nil, invalid("start_state", "please specify a start state")
	}

	a := &domain.Automaton{
		States:   states,
		Alphabet: alphabet,
		Start:    start,
		Accept:   domain.NewStateSet(accept...),
	}
	if !a.HasState(start) {
		return nil, invalid("start_state", "start state must be one of the states")
	}
	if len(accept) == 0 {
		return nil, invalid("accept_states", "please specify at least one accept state")
	}
	for _, s := range accept {
		if !a.HasState(s) {
			return nil, invalid("accept_states", fmt.Sprintf("accept state '%s' is not in the set of states", s))
		}
	}

	var err error
	if mode == domain.ModeNFA {
		a.Transitions, err = parseNFA(a, def.Transitions)
	} else {
		a.Transitions, err = parseDFA(a, def.Transitions, cfg)
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func parseDFA(a *domain.Automaton, text string, cfg config) (domain.DFATable, error) {
	table := make(domain.DFATable)
	lines := make(map[domain.Key]int)

	for i, line := range splitLines(text) {
		n := i + 1
		if line == "" {
			continue
		}
		state, symbol, next, err := splitTransition(line, n)
		if err != nil {
			return nil, err
		}
		if !a.HasState(state) {
			return nil, invalidLine(n, fmt.Sprintf("state '%s' in transition is not in the set of states", state))
		}
		if !a.HasSymbol(symbol) {
			return nil, invalidLine(n, fmt.Sprintf("symbol '%s' in transition is not in the alphabet", symbol))
		}
		if !a.HasState(next) {
			return nil, invalidLine(n, fmt.Sprintf("next state '%s' in transition is not in the set of states", next))
		}

		key := domain.Key{State: state, Symbol: symbol}
		if prev, ok := table[key]; ok && prev != next {
			if cfg.duplicates == DuplicatesReject {
				return nil, invalidLine(n, fmt.Sprintf(
					"conflicting transitions for '%s' on '%s': '%s' (line %d) and '%s'",
					state, symbol, prev, lines[key], next))
			}
			cfg.logger.Debug("dfa transition overwritten",
				"state", state, "symbol", symbol, "previous", prev, "next", next, "line", n)
		}
		table[key] = next
		lines[key] = n
	}
	return table, nil
}

func parseNFA(a *domain.Automaton, text string) (domain.NFATable, error) {
	table := make(domain.NFATable)

	for i, line := range splitLines(text) {
		n := i + 1
		if line == "" {
			continue
		}
		state, symbol, nextField, err := splitTransition(line, n)
		if err != nil {
			return nil, err
		}
		if symbol == domain.EpsilonGlyph {
			symbol = domain.Epsilon
		}
		if !a.HasState(state) {
			return nil, invalidLine(n, fmt.Sprintf("state '%s' in transition is not in the set of states", state))
		}
		if symbol != domain.Epsilon && !a.HasSymbol(symbol) {
			return nil, invalidLine(n, fmt.Sprintf("symbol '%s' in transition is not in the alphabet (or empty for epsilon)", symbol))
		}

		var targets []string
		for _, ns := range strings.Split(nextField, ";") {
			ns = strings.TrimSpace(ns)
			if ns == "" {
				continue
			}
			if !a.HasState(ns) {
				return nil, invalidLine(n, fmt.Sprintf("next state '%s' in transition is not in the set of states", ns))
			}
			targets = append(targets, ns)
		}
		if len(targets) == 0 {
			return nil, invalidLine(n, fmt.Sprintf("transition from '%s' must list at least one next state", state))
		}
		table.Add(state, symbol, targets...)
	}
	return table, nil
}

func splitTransition(line string, n int) (state, symbol, next string, err error) {
	parts := strings.Split(line, ",")
	if len(parts) != 3 {
		return "", "", "", invalidLine(n, "invalid transition format, use 'state,symbol,next_state'")
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), strings.TrimSpace(parts[2]), nil
}

// splitList splits on commas, trims, drops blanks and collapses duplicates (first wins).
func splitList(s string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if _, dup := seen[item]; dup {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}

// splitLines returns trimmed lines. Blank lines are kept as "" so indexes
// match the user's text.
func splitLines(s string) []string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return lines
}

func invalid(field, reason string) *domain.ValidationError {
	return &domain.ValidationError{Field: field, Reason: reason}
}

func invalidLine(n int, reason string) *domain.ValidationError {
	return &domain.ValidationError{Field: "transitions", Line: n, Reason: reason}
}
