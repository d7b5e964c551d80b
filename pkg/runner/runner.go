package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aretw0/automata/internal/logging"
	"github.com/aretw0/automata/internal/runtime"
	"github.com/aretw0/automata/pkg/domain"
)

// Runner handles the command loop of a step-by-step simulation.
// It uses an IOHandler strategy to abstract the interaction mode (Text vs JSON).
type Runner struct {
	// Handler is the strategy for IO. If nil, a TextHandler on stdin/stdout is used.
	Handler IOHandler

	// Logger is used for internal debug logging.
	// If nil, a no-op logger is used.
	Logger *slog.Logger
}

// NewRunner creates a Runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{}
	for _, opt := range opts {
		opt(r)
	}
	if r.Handler == nil {
		r.Handler = NewTextHandler(os.Stdin, os.Stdout)
	}
	if r.Logger == nil {
		r.Logger = logging.NewNop()
	}
	return r
}

// Run presents the current snapshot and applies commands until quit, end of
// input or cancellation. It returns the last snapshot shown.
func (r *Runner) Run(ctx context.Context, s Stepper) (domain.Simulation, error) {
	sim, err := s.Current(ctx)
	if err != nil {
		return sim, err
	}
	if err := r.show(ctx, sim, ""); err != nil {
		return sim, err
	}

	for {
		cmd, err := r.Handler.Input(ctx)
		switch {
		case errors.Is(err, io.EOF):
			return sim, nil
		case errors.Is(err, ErrUnknownCommand):
			if err := r.Handler.SystemOutput(ctx, err.Error()+"; "+HelpText); err != nil {
				return sim, err
			}
			continue
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return sim, ctxErr
			}
			return sim, fmt.Errorf("input error: %w", err)
		}

		r.Logger.DebugContext(ctx, "runner command", "command", cmd, "run_id", sim.RunID, "position", sim.Position)

		switch cmd {
		case CommandQuit:
			return sim, nil
		case CommandHelp:
			err = r.Handler.SystemOutput(ctx, HelpText)
		case CommandForward:
			if sim.Finished {
				err = r.Handler.SystemOutput(ctx, "run finished; back or reset to continue")
				break
			}
			sim, err = r.step(ctx, sim, s.Forward, domain.DirectionForward)
		case CommandBack:
			if sim.Position == 0 {
				err = r.Handler.SystemOutput(ctx, "already at the first step")
				break
			}
			sim, err = r.step(ctx, sim, s.Back, domain.DirectionBack)
		case CommandReset:
			sim, err = r.step(ctx, sim, s.Reset, domain.DirectionReset)
		case CommandRun:
			for !sim.Finished && err == nil {
				if err = ctx.Err(); err != nil {
					break
				}
				sim, err = r.step(ctx, sim, s.Forward, domain.DirectionForward)
			}
		}
		if err != nil {
			return sim, err
		}
	}
}

// step applies op and shows the result. On failure prev is kept.
func (r *Runner) step(ctx context.Context, prev domain.Simulation, op func(context.Context) (domain.Simulation, error), dir domain.Direction) (domain.Simulation, error) {
	sim, err := op(ctx)
	if err != nil {
		return prev, fmt.Errorf("%s failed: %w", dir, err)
	}
	return sim, r.show(ctx, sim, dir)
}

func (r *Runner) show(ctx context.Context, sim domain.Simulation, dir domain.Direction) error {
	frame := Frame{Simulation: sim, Formula: runtime.Formula(sim), Direction: dir}
	if err := r.Handler.Output(ctx, frame); err != nil {
		return fmt.Errorf("output error: %w", err)
	}
	return nil
}
