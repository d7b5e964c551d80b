package domain

import "time"

// TopicAutomata tags history entries written by the simulator.
const TopicAutomata = "automata"

// DefaultHistoryLimit is how many entries a recorder keeps unless configured otherwise.
const DefaultHistoryLimit = 10

// HistoryEntry is one completed computation kept for later review.
type HistoryEntry struct {
	Topic     string         `json:"topic" yaml:"topic"`
	Operation string         `json:"operation" yaml:"operation"`
	Inputs    map[string]any `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Answer    any            `json:"answer,omitempty" yaml:"answer,omitempty"`
	Formula   string         `json:"formula,omitempty" yaml:"formula,omitempty"`
	Timestamp time.Time      `json:"timestamp" yaml:"timestamp"`
}
