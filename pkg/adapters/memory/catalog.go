package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/aretw0/automata/pkg/domain"
)

// Catalog implements ports.Catalog over a fixed set of entries.
// It is immutable after creation and safe for concurrent use.
type Catalog struct {
	entries map[string]domain.CatalogEntry
}

// NewCatalog indexes entries by name. Later entries replace earlier ones with the same name.
func NewCatalog(entries ...domain.CatalogEntry) *Catalog {
	c := &Catalog{entries: make(map[string]domain.CatalogEntry, len(entries))}
	for _, e := range entries {
		c.entries[e.Name] = e
	}
	return c
}

// Builtin returns the catalog of bundled examples.
func Builtin() *Catalog {
	return NewCatalog(builtinEntries...)
}

// List returns every entry ordered by name.
func (c *Catalog) List(ctx context.Context) ([]domain.CatalogEntry, error) {
	out := make([]domain.CatalogEntry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Get returns the named entry.
func (c *Catalog) Get(ctx context.Context, name string) (domain.CatalogEntry, error) {
	e, ok := c.entries[name]
	if !ok {
		return domain.CatalogEntry{}, fmt.Errorf("%w: %s", domain.ErrEntryNotFound, name)
	}
	return e, nil
}

var builtinEntries = []domain.CatalogEntry{
	{
		Name:        "ending-01",
		Title:       "Zero after a one",
		Description: "DFA over {0,1}: q2 is entered by reading 0 after a 1 and left again on the next 1.",
		Definition: domain.Definition{
			Mode:         domain.ModeDFA,
			States:       "q0,q1,q2",
			Alphabet:     "0,1",
			StartState:   "q0",
			AcceptStates: "q2",
			Transitions:  "q0,0,q0\nq0,1,q1\nq1,0,q2\nq1,1,q0\nq2,0,q2\nq2,1,q1",
		},
		Samples: []string{"10", "101", "1010", "0"},
	},
	{
		Name:        "even-zeros",
		Title:       "Even number of zeros",
		Description: "DFA over {0,1} accepting strings with an even count of 0.",
		Definition: domain.Definition{
			Mode:         domain.ModeDFA,
			States:       "q0,q1",
			Alphabet:     "0,1",
			StartState:   "q0",
			AcceptStates: "q0",
			Transitions:  "q0,0,q1\nq0,1,q0\nq1,0,q0\nq1,1,q1",
		},
		Samples: []string{"", "00", "0", "0001"},
	},
	{
		Name:        "contains-11",
		Title:       "Contains 11",
		Description: "NFA over {0,1} that guesses where the substring 11 starts.",
		Definition: domain.Definition{
			Mode:         domain.ModeNFA,
			States:       "q0,q1,q2",
			Alphabet:     "0,1",
			StartState:   "q0",
			AcceptStates: "q2",
			Transitions:  "q0,0,q0\nq0,1,q0;q1\nq1,1,q2\nq2,0,q2\nq2,1,q2",
		},
		Samples: []string{"11", "0110", "1010", "1"},
	},
	{
		Name:        "a-star-b-star",
		Title:       "a*b*",
		Description: "Epsilon-NFA accepting any run of a followed by any run of b.",
		Definition: domain.Definition{
			Mode:         domain.ModeNFA,
			States:       "q_start,q_a,q_b",
			Alphabet:     "a,b",
			StartState:   "q_start",
			AcceptStates: "q_start,q_a,q_b",
			Transitions:  "q_start,,q_a\nq_a,a,q_a\nq_a,,q_b\nq_b,b,q_b",
		},
		Samples: []string{"", "aab", "bbb", "aba"},
	},
}

// BuiltinNames lists the names of the bundled examples.
func BuiltinNames() []string {
	names := make([]string, len(builtinEntries))
	for i, e := range builtinEntries {
		names[i] = e.Name
	}
	return names
}
