package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/aretw0/automata/pkg/domain"
	"github.com/aretw0/automata/pkg/ports"
)

type layered []ports.Catalog

// Layered combines catalogs. An entry in an earlier catalog hides entries
// of the same name in later ones.
func Layered(catalogs ...ports.Catalog) ports.Catalog {
	return layered(catalogs)
}

func (l layered) List(ctx context.Context) ([]domain.CatalogEntry, error) {
	seen := make(map[string]struct{})
	var out []domain.CatalogEntry
	for _, c := range l {
		entries, err := c.List(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if _, ok := seen[e.Name]; ok {
				continue
			}
			seen[e.Name] = struct{}{}
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (l layered) Get(ctx context.Context, name string) (domain.CatalogEntry, error) {
	for _, c := range l {
		e, err := c.Get(ctx, name)
		if err == nil {
			return e, nil
		}
		if !errors.Is(err, domain.ErrEntryNotFound) {
			return domain.CatalogEntry{}, err
		}
	}
	return domain.CatalogEntry{}, fmt.Errorf("%w: %s", domain.ErrEntryNotFound, name)
}
