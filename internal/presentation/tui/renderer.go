package tui

import (
	"github.com/charmbracelet/glamour"

	"github.com/aretw0/automata/pkg/runner"
)

// NewRenderer returns a runner.ContentRenderer that renders markdown with
// glamour. A width of zero keeps glamour's default word wrap.
func NewRenderer(width int) runner.ContentRenderer {
	opts := []glamour.TermRendererOption{
		glamour.WithAutoStyle(), // Automatically detect light/dark background
	}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}

	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return func(markdown string) (string, error) {
			return markdown, nil
		}
	}
	return r.Render
}
