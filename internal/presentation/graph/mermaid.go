package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/automata/pkg/domain"
)

// Overlay contains run state to highlight on the diagram.
type Overlay struct {
	Visited []string
	Current []string
	// DeadEnd marks a run that stopped on an undefined move.
	DeadEnd bool
}

// OverlayFrom highlights every state on the trace of sim and its current set.
func OverlayFrom(sim domain.Simulation) *Overlay {
	visited := make(domain.StateSet)
	for _, set := range sim.Trace {
		visited.Union(set)
	}
	return &Overlay{
		Visited: visited.Sorted(),
		Current: sim.Current.Sorted(),
		DeadEnd: sim.DeadEnd,
	}
}

// GenerateMermaid produces a left-to-right Mermaid flowchart of a.
//
// Accepting states are double circles, the others single circles, and an
// unlabeled marker points at the start state. Parallel edges between the same
// pair of states are merged into one edge labeled with every symbol.
// Node IDs are positional, so state names never need escaping.
func GenerateMermaid(a *domain.Automaton, overlay *Overlay) string {
	ids := make(map[string]string, len(a.States))
	for i, s := range a.States {
		ids[s] = fmt.Sprintf("s%d", i)
	}

	var sb strings.Builder
	sb.WriteString("graph LR\n")
	sb.WriteString("    start[ ]:::entry --> " + ids[a.Start] + "\n")

	for _, s := range a.States {
		opener, closer := "((", "))"
		if a.Accept.Has(s) {
			opener, closer = "(((", ")))"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", ids[s], opener, escapeLabel(s), closer)
	}

	for _, e := range edges(a) {
		fmt.Fprintf(&sb, "    %s -- \"%s\" --> %s\n", ids[e.from], escapeLabel(strings.Join(e.symbols, ",")), ids[e.to])
	}

	sb.WriteString("    classDef entry fill:none,stroke:none;\n")

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Black text keeps the highlight readable on both light and dark themes.
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		sb.WriteString("    classDef dead fill:#ffcdd2,stroke:#b71c1c,stroke-width:4px,color:#000;\n")

		current := domain.NewStateSet(overlay.Current...)
		for _, s := range dedupe(overlay.Visited) {
			if id, ok := ids[s]; ok && !current.Has(s) {
				fmt.Fprintf(&sb, "    class %s visited;\n", id)
			}
		}
		class := "current"
		if overlay.DeadEnd {
			class = "dead"
		}
		for _, s := range dedupe(overlay.Current) {
			if id, ok := ids[s]; ok {
				fmt.Fprintf(&sb, "    class %s %s;\n", id, class)
			}
		}
	}

	return sb.String()
}

type edge struct {
	from, to string
	symbols  []string
}

// edges lists transitions grouped by (from, to), in state then symbol
// declaration order with epsilon moves first.
func edges(a *domain.Automaton) []edge {
	symbols := append([]string{domain.Epsilon}, a.Alphabet...)
	nfa := a.NFA()

	var out []edge
	for _, from := range a.States {
		index := make(map[string]int)
		for _, sym := range symbols {
			targets := nfa.Targets(from, sym)
			if targets.Empty() {
				continue
			}
			label := sym
			if sym == domain.Epsilon {
				label = domain.EpsilonGlyph
			}
			for _, to := range a.Ordered(targets) {
				i, ok := index[to]
				if !ok {
					i = len(out)
					index[to] = i
					out = append(out, edge{from: from, to: to})
				}
				out[i].symbols = append(out[i].symbols, label)
			}
		}
	}
	return out
}

func dedupe(states []string) []string {
	return domain.NewStateSet(states...).Sorted()
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "#quot;")
}
