package loam

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/automata/internal/logging"
	"github.com/aretw0/automata/pkg/domain"
	"github.com/aretw0/loam"
)

// watchPattern matches every file format Loam can read a definition from.
const watchPattern = "**/*.{md,json,yaml,yml}"

// Catalog adapts a Loam repository to ports.Catalog. Each document is one
// entry; the entry name is the "name" field or the file path without extension.
//
// Entries are read once and cached until Watch reports a change.
type Catalog struct {
	Repo   *loam.TypedRepository[EntryMetadata]
	logger *slog.Logger

	mu      sync.RWMutex
	entries []domain.CatalogEntry
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithLogger sets the logger used for reload messages.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Catalog) {
		c.logger = logger
	}
}

// New creates a catalog over an already initialized repository.
func New(repo *loam.TypedRepository[EntryMetadata], opts ...Option) *Catalog {
	c := &Catalog{Repo: repo}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logging.NewNop()
	}
	return c
}

// Open initializes a read-only Loam repository at dir.
func Open(dir string, opts ...Option) (*Catalog, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid catalog path: %w", err)
	}

	// Strict mode keeps numbers as json.Number across JSON and YAML sources.
	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(loam.NewTypedRepository[EntryMetadata](repo), opts...), nil
}

// List returns every entry ordered by name.
func (c *Catalog) List(ctx context.Context) ([]domain.CatalogEntry, error) {
	entries, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.CatalogEntry, len(entries))
	copy(out, entries)
	return out, nil
}

// Get returns the named entry or an error wrapping domain.ErrEntryNotFound.
func (c *Catalog) Get(ctx context.Context, name string) (domain.CatalogEntry, error) {
	entries, err := c.load(ctx)
	if err != nil {
		return domain.CatalogEntry{}, err
	}
	i := sort.Search(len(entries), func(i int) bool { return entries[i].Name >= name })
	if i < len(entries) && entries[i].Name == name {
		return entries[i], nil
	}
	return domain.CatalogEntry{}, fmt.Errorf("%w: %s", domain.ErrEntryNotFound, name)
}

func (c *Catalog) load(ctx context.Context) ([]domain.CatalogEntry, error) {
	c.mu.RLock()
	cached := c.entries
	c.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	docs, err := c.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[string]string, len(docs))
	entries := make([]domain.CatalogEntry, 0, len(docs))
	for _, doc := range docs {
		name := doc.Data.Name
		if name == "" {
			name = doc.ID
		}
		name = trimExtension(name)

		if existing, ok := seen[name]; ok {
			return nil, fmt.Errorf("collision detected: entry '%s' is defined in both '%s' and '%s'", name, existing, doc.ID)
		}
		seen[name] = doc.ID
		entries = append(entries, doc.Data.Entry(name, doc.Content))
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
	c.logger.DebugContext(ctx, "catalog loaded", "entries", len(entries))
	return entries, nil
}

// Invalidate drops the cached entries; the next call re-reads the repository.
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	c.entries = nil
	c.mu.Unlock()
}

// Watch invalidates the cache on every file change and forwards the changed
// entry name. The channel is closed when ctx is done or the watcher stops.
func (c *Catalog) Watch(ctx context.Context) (<-chan string, error) {
	events, err := c.Repo.Watch(ctx, watchPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to start loam watcher: %w", err)
	}

	ch := make(chan string, 1)
	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				c.Invalidate()
				name := trimExtension(evt.ID)
				c.logger.InfoContext(ctx, "catalog changed", "entry", name)
				select {
				case ch <- name:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch, nil
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}
