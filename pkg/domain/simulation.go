package domain

// Status is the lifecycle phase of a step-by-step run.
type Status string

const (
	StatusUninitialized Status = "uninitialized" // No automaton loaded
	StatusReady         Status = "ready"         // Input remains to be consumed
	StatusFinished      Status = "finished"      // Input exhausted or dead end reached
)

// Simulation is the trace of one step-by-step run.
//
// Trace[0] is the configuration before any symbol is consumed and
// len(Trace) == Position+1 always holds. A DFA configuration is a singleton
// set; an empty set marks a dead end.
type Simulation struct {
	RunID    uint64     `json:"run_id" yaml:"run_id"`
	Mode     Mode       `json:"mode" yaml:"mode"`
	Input    string     `json:"input" yaml:"input"`
	Position int        `json:"position" yaml:"position"`
	Current  StateSet   `json:"current" yaml:"current"`
	Trace    []StateSet `json:"trace" yaml:"trace"`
	Finished bool       `json:"finished" yaml:"finished"`
	Accepted bool       `json:"accepted" yaml:"accepted"`
	DeadEnd  bool       `json:"dead_end" yaml:"dead_end"`
	Status   Status     `json:"status" yaml:"status"`
}

// Clone returns a deep copy safe to hand to another goroutine.
func (s Simulation) Clone() Simulation {
	out := s
	out.Current = s.Current.Clone()
	if s.Trace != nil {
		out.Trace = make([]StateSet, len(s.Trace))
		for i, set := range s.Trace {
			out.Trace[i] = set.Clone()
		}
	}
	return out
}

// InputRunes returns the input as consumed by the simulator, one rune per step.
func (s Simulation) InputRunes() []rune {
	return []rune(s.Input)
}

// Remaining returns the unconsumed suffix of the input.
func (s Simulation) Remaining() string {
	runes := s.InputRunes()
	if s.Position >= len(runes) {
		return ""
	}
	return string(runes[s.Position:])
}
