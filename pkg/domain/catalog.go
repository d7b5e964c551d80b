package domain

// CatalogEntry is a named, ready-to-load automaton definition.
type CatalogEntry struct {
	Name        string     `json:"name" yaml:"name" mapstructure:"name"`
	Title       string     `json:"title,omitempty" yaml:"title,omitempty" mapstructure:"title"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
	Definition  Definition `json:"definition" yaml:"definition" mapstructure:",squash"`
	// Samples are suggested test strings.
	Samples []string `json:"samples,omitempty" yaml:"samples,omitempty" mapstructure:"samples"`
}
