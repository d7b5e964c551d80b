package loam

import (
	"fmt"
	"strings"

	"github.com/aretw0/automata/pkg/domain"
)

// EntryMetadata is the frontmatter (or JSON/YAML body) of a catalog file.
//
// List-valued fields accept either the comma separated text the validator
// reads or a YAML list. Transitions accept a block string or a list of lines.
type EntryMetadata struct {
	Name        string `json:"name" mapstructure:"name"`
	Title       string `json:"title" mapstructure:"title"`
	Description string `json:"description" mapstructure:"description"`

	Mode         string `json:"mode" mapstructure:"mode"`
	States       any    `json:"states" mapstructure:"states"`
	Alphabet     any    `json:"alphabet" mapstructure:"alphabet"`
	StartState   string `json:"start_state" mapstructure:"start_state"`
	AcceptStates any    `json:"accept_states" mapstructure:"accept_states"`
	Transitions  any    `json:"transitions" mapstructure:"transitions"`

	// Samples are suggested test strings. Quote them in YAML: 001 is a number.
	Samples []any `json:"samples" mapstructure:"samples"`
}

// Entry converts the metadata into a catalog entry. body is the markdown
// content, used as the description when the frontmatter has none.
func (m EntryMetadata) Entry(name, body string) domain.CatalogEntry {
	desc := strings.TrimSpace(m.Description)
	if desc == "" {
		desc = strings.TrimSpace(body)
	}
	samples := make([]string, 0, len(m.Samples))
	for _, s := range m.Samples {
		samples = append(samples, fmt.Sprint(s))
	}
	return domain.CatalogEntry{
		Name:        name,
		Title:       m.Title,
		Description: desc,
		Definition: domain.Definition{
			Mode:         domain.Mode(strings.ToLower(strings.TrimSpace(m.Mode))),
			States:       joinList(m.States, ","),
			Alphabet:     joinList(m.Alphabet, ","),
			StartState:   strings.TrimSpace(m.StartState),
			AcceptStates: joinList(m.AcceptStates, ","),
			Transitions:  joinList(m.Transitions, "\n"),
		},
		Samples: samples,
	}
}

func joinList(v any, sep string) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case []string:
		return strings.Join(val, sep)
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, strings.TrimSpace(fmt.Sprint(item)))
		}
		return strings.Join(parts, sep)
	default:
		return fmt.Sprint(val)
	}
}
