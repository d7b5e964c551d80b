package runtime

import "github.com/aretw0/automata/pkg/domain"

// NFAResult is the outcome of evaluating a whole string on an NFA.
type NFAResult struct {
	Accepted bool `json:"accepted"`
	// Trace holds the configuration before each symbol and after the last one.
	Trace       []domain.StateSet `json:"trace"`
	FinalStates domain.StateSet   `json:"final_states"`
	// DeadEnd is set when the configuration became empty.
	DeadEnd  bool `json:"dead_end"`
	Consumed int  `json:"consumed"`
}

// StepNFA moves every state of current on symbol and closes the result over
// epsilon moves. An empty result is a valid terminal configuration.
func StepNFA(current domain.StateSet, symbol string, table domain.NFATable) domain.StateSet {
	next := make(domain.StateSet)
	for s := range current {
		next.Union(table.Targets(s, symbol))
	}
	return Closure(next, table)
}

// ProcessNFA runs input from closure({start}). DFAs are accepted and viewed as NFAs.
func ProcessNFA(a *domain.Automaton, input string) NFAResult {
	table := a.NFA()

	current := Closure(domain.NewStateSet(a.Start), table)
	res := NFAResult{Trace: []domain.StateSet{current}}
	for _, r := range input {
		current = StepNFA(current, string(r), table)
		res.Trace = append(res.Trace, current)
		res.Consumed++
		if current.Empty() {
			res.DeadEnd = true
			break
		}
	}

	res.FinalStates = current
	res.Accepted = a.Accepts(current)
	return res
}
