package ports

import (
	"context"

	"github.com/aretw0/automata/pkg/domain"
)

// Converter performs the automaton transformations that sit outside the
// simulator. Implementations may be local or remote; callers must treat every
// call as potentially slow and apply results only to the run that requested them.
type Converter interface {
	// NFAToDFA determinizes an NFA document by subset construction.
	NFAToDFA(ctx context.Context, doc domain.Document) (domain.Document, error)

	// Minimize returns the minimal DFA equivalent to doc.
	Minimize(ctx context.Context, doc domain.Document) (domain.Document, error)

	// RegexToNFA compiles a regular expression into an epsilon-NFA document.
	RegexToNFA(ctx context.Context, expr string) (domain.Document, error)
}

// Catalog lists ready-made automaton definitions.
type Catalog interface {
	// List returns every entry, ordered by name.
	List(ctx context.Context) ([]domain.CatalogEntry, error)

	// Get returns a single entry or an error wrapping domain.ErrEntryNotFound.
	Get(ctx context.Context, name string) (domain.CatalogEntry, error)
}
