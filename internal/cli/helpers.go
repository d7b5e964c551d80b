package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/aretw0/automata/internal/logging"
	"github.com/aretw0/automata/pkg/codec"
	"github.com/aretw0/automata/pkg/domain"
	"github.com/aretw0/automata/pkg/ports"
)

// Source names where a command reads its automaton from: a JSON or YAML
// document ("-" reads stdin), or a catalog entry.
type Source struct {
	File  string
	Entry string
	// Mode overrides the mode of the loaded definition when set.
	Mode string
}

// ErrNoSource is returned when neither a file nor a catalog entry is given.
var ErrNoSource = errors.New("an automaton file or --example name is required")

// LoadDefinition resolves src into a raw definition plus suggested inputs.
func LoadDefinition(ctx context.Context, catalog ports.Catalog, src Source, stdin io.Reader) (domain.Definition, []string, error) {
	var (
		def     domain.Definition
		samples []string
	)
	switch {
	case src.Entry != "":
		entry, err := catalog.Get(ctx, src.Entry)
		if err != nil {
			return domain.Definition{}, nil, err
		}
		def, samples = entry.Definition, entry.Samples
	case src.File != "":
		doc, err := readDocument(src.File, stdin)
		if err != nil {
			return domain.Definition{}, nil, err
		}
		def, err = codec.ToDefinition(doc)
		if err != nil {
			return domain.Definition{}, nil, err
		}
	default:
		return domain.Definition{}, nil, ErrNoSource
	}

	if src.Mode != "" {
		mode, err := domain.ParseMode(src.Mode)
		if err != nil {
			return domain.Definition{}, nil, err
		}
		def.Mode = mode
	}
	return def, samples, nil
}

func readDocument(path string, stdin io.Reader) (domain.Document, error) {
	var (
		data []byte
		err  error
	)
	format := codec.FormatFromPath(path)
	if path == "-" {
		data, err = io.ReadAll(stdin)
		if trimmed := strings.TrimSpace(string(data)); trimmed != "" && !strings.HasPrefix(trimmed, "{") {
			format = codec.FormatYAML
		}
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return domain.Document{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return codec.Decode(data, format)
}

// NewLogger writes to stderr at the named level, so stdout stays free for
// command output and JSON-RPC.
func NewLogger(level string) *slog.Logger {
	return logging.New(logging.ParseLevel(level))
}

// PrintSystemMessage prints a standardized system message.
func PrintSystemMessage(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, ">>> %s\n", fmt.Sprintf(format, args...))
}
