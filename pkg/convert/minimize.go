package convert

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/aretw0/automata/pkg/domain"
)

// Minimize returns the smallest DFA accepting the same language.
// Unreachable states are dropped, then states are merged by Moore partition
// refinement. A missing transition counts as its own distinct target, so
// partial DFAs stay partial. States are renamed Q0..Qn following the
// declaration order of each group's first member.
func Minimize(a *domain.Automaton) (*domain.Automaton, error) {
	table, ok := a.DFA()
	if !ok {
		return nil, fmt.Errorf("%w: minimization needs a dfa, got %s", domain.ErrModeMismatch, a.Mode())
	}

	states := reachable(a, table)
	if !a.Accepts(domain.NewStateSet(states...)) {
		return nil, fmt.Errorf("%w: no accepting state is reachable from %s", domain.ErrEmptyLanguage, a.Start)
	}
	partition := initialPartition(a, states)
	for {
		refined := refine(partition, a.Alphabet, table)
		if len(refined) == len(partition) {
			break
		}
		partition = refined
	}

	order := make(map[string]int, len(a.States))
	for i, s := range a.States {
		order[s] = i
	}
	sort.Slice(partition, func(i, j int) bool {
		return order[partition[i][0]] < order[partition[j][0]]
	})

	groupOf := make(map[string]string, len(states))
	names := make([]string, len(partition))
	for i, group := range partition {
		names[i] = "Q" + strconv.Itoa(i)
		for _, s := range group {
			groupOf[s] = names[i]
		}
	}

	out := &domain.Automaton{
		States:      names,
		Alphabet:    append([]string{}, a.Alphabet...),
		Start:       groupOf[a.Start],
		Accept:      domain.NewStateSet(),
		Transitions: domain.DFATable{},
	}
	minTable := out.Transitions.(domain.DFATable)
	for i, group := range partition {
		rep := group[0]
		if a.Accept.Has(rep) {
			out.Accept.Add(names[i])
		}
		for _, symbol := range a.Alphabet {
			if next, ok := table.Next(rep, symbol); ok {
				minTable[domain.Key{State: names[i], Symbol: symbol}] = groupOf[next]
			}
		}
	}
	return out, nil
}

// reachable lists states reachable from start, in declaration order.
func reachable(a *domain.Automaton, table domain.DFATable) []string {
	seen := domain.NewStateSet(a.Start)
	stack := []string{a.Start}
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, symbol := range a.Alphabet {
			if next, ok := table.Next(s, symbol); ok && seen.Add(next) {
				stack = append(stack, next)
			}
		}
	}

	out := make([]string, 0, len(seen))
	for _, s := range a.States {
		if seen.Has(s) {
			out = append(out, s)
		}
	}
	return out
}

func initialPartition(a *domain.Automaton, states []string) [][]string {
	var accepting, rejecting []string
	for _, s := range states {
		if a.Accept.Has(s) {
			accepting = append(accepting, s)
		} else {
			rejecting = append(rejecting, s)
		}
	}

	var partition [][]string
	for _, group := range [][]string{accepting, rejecting} {
		if len(group) > 0 {
			partition = append(partition, group)
		}
	}
	return partition
}

// refine splits every group by the groups its members move to.
// Member order inside groups is preserved.
func refine(partition [][]string, alphabet []string, table domain.DFATable) [][]string {
	groupOf := make(map[string]int)
	for i, group := range partition {
		for _, s := range group {
			groupOf[s] = i
		}
	}

	var refined [][]string
	for _, group := range partition {
		var order []string
		blocks := make(map[string][]string)
		for _, s := range group {
			sig := signature(s, alphabet, table, groupOf)
			if _, ok := blocks[sig]; !ok {
				order = append(order, sig)
			}
			blocks[sig] = append(blocks[sig], s)
		}
		for _, sig := range order {
			refined = append(refined, blocks[sig])
		}
	}
	return refined
}

func signature(state string, alphabet []string, table domain.DFATable, groupOf map[string]int) string {
	parts := make([]string, len(alphabet))
	for i, symbol := range alphabet {
		parts[i] = "-1"
		if next, ok := table.Next(state, symbol); ok {
			parts[i] = strconv.Itoa(groupOf[next])
		}
	}
	return strings.Join(parts, ",")
}
