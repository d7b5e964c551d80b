package runtime

import "github.com/aretw0/automata/pkg/domain"

// Closure returns every state reachable from states through epsilon moves,
// states included. The input set is not modified.
func Closure(states domain.StateSet, table domain.NFATable) domain.StateSet {
	closure := states.Clone()
	stack := make([]string, 0, len(states))
	for s := range states {
		stack = append(stack, s)
	}

	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for next := range table.Targets(s, domain.Epsilon) {
			if closure.Add(next) {
				stack = append(stack, next)
			}
		}
	}
	return closure
}
