package convert

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/automata/internal/runtime"
	"github.com/aretw0/automata/pkg/domain"
)

// SubsetName names the DFA state standing for a set of NFA states: "{q0|q1}".
// Members are sorted; '|' keeps names free of the ',' and ';' used by the
// text format. Determinize suffixes names that would clash.
func SubsetName(set domain.StateSet) string {
	return "{" + strings.Join(set.Sorted(), "|") + "}"
}

// Determinize builds the DFA reachable from closure({start}) by subset
// construction. Empty subsets are never materialized, so the result may be
// partial. DFAs are accepted and produce an isomorphic copy.
func Determinize(a *domain.Automaton) (*domain.Automaton, error) {
	if a == nil || a.Transitions == nil {
		return nil, fmt.Errorf("%w: no automaton to determinize", domain.ErrInvalidDefinition)
	}
	nfa := a.NFA()

	start := runtime.Closure(domain.NewStateSet(a.Start), nfa)

	out := &domain.Automaton{
		Alphabet:    append([]string{}, a.Alphabet...),
		Start:       SubsetName(start),
		Accept:      domain.NewStateSet(),
		Transitions: domain.DFATable{},
	}
	table := out.Transitions.(domain.DFATable)

	names := subsetNames{byKey: map[string]string{}, used: map[string]bool{}}
	names.assign(start)
	queue := []domain.StateSet{start}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		name := names.byKey[subsetKey(current)]

		out.States = append(out.States, name)
		if a.Accepts(current) {
			out.Accept.Add(name)
		}

		for _, symbol := range a.Alphabet {
			next := runtime.StepNFA(current, symbol, nfa)
			if next.Empty() {
				continue
			}
			nextName, fresh := names.assign(next)
			table[domain.Key{State: name, Symbol: symbol}] = nextName
			if fresh {
				queue = append(queue, next)
			}
		}
	}
	if out.Accept.Empty() {
		return nil, fmt.Errorf("%w: no accepting state is reachable from %s", domain.ErrEmptyLanguage, a.Start)
	}
	return out, nil
}

// subsetKey identifies a subset by its members. Quoting keeps the key
// unambiguous whatever characters the names hold.
func subsetKey(set domain.StateSet) string {
	members := set.Sorted()
	for i, m := range members {
		members[i] = strconv.Quote(m)
	}
	return strings.Join(members, ",")
}

// subsetNames hands out one display name per subset. State names may contain
// '|' or braces, so two subsets can render alike; later ones get a "'" suffix.
type subsetNames struct {
	byKey map[string]string
	used  map[string]bool
}

func (n subsetNames) assign(set domain.StateSet) (string, bool) {
	key := subsetKey(set)
	if name, ok := n.byKey[key]; ok {
		return name, false
	}
	name := SubsetName(set)
	for n.used[name] {
		name += "'"
	}
	n.byKey[key] = name
	n.used[name] = true
	return name, true
}
