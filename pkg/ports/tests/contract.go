package tests

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/automata/internal/validator"
	"github.com/aretw0/automata/pkg/domain"
	"github.com/aretw0/automata/pkg/ports"
)

// CatalogContractTest is a reusable test suite that verifies if an adapter complies with ports.Catalog.
// Every listed entry must hold a definition the validator accepts.
func CatalogContractTest(t *testing.T, catalog ports.Catalog, wantNames []string) {
	t.Helper()
	ctx := context.Background()

	// 1. Test List
	t.Run("List", func(t *testing.T) {
		entries, err := catalog.List(ctx)
		if err != nil {
			t.Fatalf("unexpected error listing entries: %v", err)
		}
		if len(entries) != len(wantNames) {
			t.Errorf("expected %d entries, got %d", len(wantNames), len(entries))
		}

		lookup := make(map[string]bool)
		for i, e := range entries {
			lookup[e.Name] = true
			if i > 0 && entries[i-1].Name > e.Name {
				t.Errorf("entries not ordered by name: %s before %s", entries[i-1].Name, e.Name)
			}
		}
		for _, name := range wantNames {
			if !lookup[name] {
				t.Errorf("entry %s missing from list", name)
			}
		}
	})

	// 2. Test Get (Success)
	t.Run("Get_Success", func(t *testing.T) {
		for _, name := range wantNames {
			entry, err := catalog.Get(ctx, name)
			if err != nil {
				t.Fatalf("unexpected error getting entry %s: %v", name, err)
			}
			if entry.Name != name {
				t.Errorf("name mismatch: got %q, want %q", entry.Name, name)
			}
			if _, err := validator.Parse(entry.Definition); err != nil {
				t.Errorf("entry %s does not validate: %v", name, err)
			}
		}
	})

	// 3. Test Get (NotFound)
	t.Run("Get_NotFound", func(t *testing.T) {
		_, err := catalog.Get(ctx, "non-existent-entry")
		if !errors.Is(err, domain.ErrEntryNotFound) {
			t.Errorf("expected ErrEntryNotFound, got %v", err)
		}
	})
}
