package domain

// Definition is the raw, unvalidated text a user typed.
// Lists are comma separated; transitions hold one "state,symbol,next" per line
// (NFA next states are ';' separated).
type Definition struct {
	Mode         Mode   `json:"mode,omitempty" yaml:"mode,omitempty" mapstructure:"mode"`
	States       string `json:"states" yaml:"states" mapstructure:"states"`
	Alphabet     string `json:"alphabet" yaml:"alphabet" mapstructure:"alphabet"`
	StartState   string `json:"start_state" yaml:"start_state" mapstructure:"start_state"`
	AcceptStates string `json:"accept_states" yaml:"accept_states" mapstructure:"accept_states"`
	Transitions  string `json:"transitions" yaml:"transitions" mapstructure:"transitions"`
}

// Document is the structured export shape exchanged with conversion backends.
//
// DFA transitions are {"state,symbol": "next"}; NFA transitions are
// {"state": {"symbol": ["next", ...]}} with "" or "ε" for epsilon.
type Document struct {
	Type         Mode           `json:"type,omitempty" yaml:"type,omitempty" mapstructure:"type"`
	States       []string       `json:"states" yaml:"states" mapstructure:"states"`
	Alphabet     []string       `json:"alphabet" yaml:"alphabet" mapstructure:"alphabet"`
	StartState   string         `json:"start_state" yaml:"start_state" mapstructure:"start_state"`
	AcceptStates []string       `json:"accept_states" yaml:"accept_states" mapstructure:"accept_states"`
	Transitions  map[string]any `json:"transitions" yaml:"transitions" mapstructure:"transitions"`
}
