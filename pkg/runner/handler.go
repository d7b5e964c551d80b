package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/automata/pkg/domain"
)

// Command is a user request to the runner.
type Command string

const (
	CommandForward Command = "forward"
	CommandBack    Command = "back"
	CommandReset   Command = "reset"
	CommandRun     Command = "run"
	CommandQuit    Command = "quit"
	CommandHelp    Command = "help"
)

// ErrUnknownCommand is returned by handlers for input that names no command.
var ErrUnknownCommand = errors.New("unknown command")

// ParseCommand accepts command names and their one letter aliases.
// An empty line steps forward.
func ParseCommand(s string) (Command, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "f", "n", "next", "forward":
		return CommandForward, nil
	case "b", "p", "prev", "back":
		return CommandBack, nil
	case "r", "reset":
		return CommandReset, nil
	case "a", "all", "run":
		return CommandRun, nil
	case "q", "exit", "quit":
		return CommandQuit, nil
	case "h", "?", "help":
		return CommandHelp, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownCommand, s)
	}
}

// HelpText lists the commands understood by ParseCommand.
const HelpText = "commands: [enter]/n forward, b back, r reset, a run to the end, q quit"

// Frame is one snapshot presented to the user.
type Frame struct {
	Simulation domain.Simulation `json:"simulation"`
	Formula    string            `json:"formula"`
	// Direction is empty for the first frame of a run.
	Direction domain.Direction `json:"direction,omitempty"`
}

// IOHandler defines the strategy for interacting with the user.
// This allows switching between Text (CLI/TUI) and JSON (Structured) modes.
type IOHandler interface {
	// Output presents a snapshot.
	Output(ctx context.Context, frame Frame) error

	// Input reads the next command. It returns io.EOF when the source is
	// exhausted and an error wrapping ErrUnknownCommand for unparsable input.
	Input(ctx context.Context) (Command, error)

	// SystemOutput presents a meta-message (hints, warnings) distinct from
	// simulation content.
	SystemOutput(ctx context.Context, msg string) error
}
