package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidDefinition is matched by every validation failure.
var ErrInvalidDefinition = errors.New("invalid automaton definition")

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrEntryNotFound is returned when a catalog has no entry with the requested name.
var ErrEntryNotFound = errors.New("catalog entry not found")

// ErrModeMismatch is returned when an NFA is asked to run on the DFA engine.
var ErrModeMismatch = errors.New("automaton cannot run in the requested mode")

// ErrStaleResponse is returned when an asynchronous result arrives for a run
// that has since been restarted.
var ErrStaleResponse = errors.New("stale response for a superseded run")

// ErrUnknownConversion is returned for conversion names no converter supports.
var ErrUnknownConversion = errors.New("unknown conversion")

// ErrEmptyLanguage is returned when a conversion yields an automaton with no
// reachable accepting state.
var ErrEmptyLanguage = errors.New("result accepts no string")

// ErrInvalidRegex is returned when a regular expression cannot be compiled.
var ErrInvalidRegex = errors.New("invalid regular expression")

// ValidationError describes the first rule a Definition broke.
// Reason is user facing and is returned verbatim by Error.
type ValidationError struct {
	// Field names the offending input ("states", "alphabet", "start_state",
	// "accept_states", "transitions").
	Field string `json:"field"`
	// Line is the 1-based transition line, zero when not applicable.
	Line   int    `json:"line,omitempty"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// Location renders where the error was found, e.g. "transitions:3".
func (e *ValidationError) Location() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d", e.Field, e.Line)
	}
	return e.Field
}

// Is makes errors.Is(err, ErrInvalidDefinition) hold for every ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidDefinition
}
