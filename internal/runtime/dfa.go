package runtime

import "github.com/aretw0/automata/pkg/domain"

// DFAResult is the outcome of evaluating a whole string on a DFA.
type DFAResult struct {
	Accepted bool `json:"accepted"`
	// Trace lists the visited states, starting with the start state.
	Trace []string `json:"trace"`
	// FinalState is the last valid state reached, even after a dead end.
	FinalState string `json:"final_state"`
	DeadEnd    bool   `json:"dead_end"`
	// Consumed counts the symbols that produced a move.
	Consumed int `json:"consumed"`
}

// StepDFA applies one symbol. ok is false when the move is undefined.
func StepDFA(current, symbol string, table domain.DFATable) (next string, ok bool) {
	return table.Next(current, symbol)
}

// ProcessDFA runs input one rune at a time, stopping at the first dead end.
func ProcessDFA(a *domain.Automaton, input string) (DFAResult, error) {
	table, ok := a.DFA()
	if !ok {
		return DFAResult{}, domain.ErrModeMismatch
	}

	current := a.Start
	res := DFAResult{Trace: []string{current}}
	for _, r := range input {
		next, ok := StepDFA(current, string(r), table)
		if !ok {
			res.DeadEnd = true
			res.FinalState = current
			return res, nil
		}
		current = next
		res.Trace = append(res.Trace, current)
		res.Consumed++
	}

	res.FinalState = current
	res.Accepted = a.Accept.Has(current)
	return res, nil
}
