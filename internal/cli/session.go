package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/automata/internal/presentation/tui"
	"github.com/aretw0/automata/pkg/domain"
	"github.com/aretw0/automata/pkg/runner"
)

// StepOptions configure an interactive step-by-step run.
type StepOptions struct {
	Definition domain.Definition
	Input      string
	// SessionID persists the run in the configured store. A session that
	// already exists is resumed when Resume is set.
	SessionID string
	Resume    bool
	JSON      bool
	Plain     bool

	In  io.Reader
	Out io.Writer
}

// RunSteps drives a run with the runner until the user quits or input ends.
func RunSteps(ctx context.Context, app *App, opts StepOptions) (domain.Simulation, error) {
	stepper, err := newStepper(ctx, app, opts)
	if err != nil {
		return domain.Simulation{}, err
	}

	var handler runner.IOHandler
	if opts.JSON {
		handler = runner.NewJSONHandler(opts.In, opts.Out)
	} else {
		handlerOpts := []runner.TextHandlerOption{runner.WithTextHandlerMaxInputSize(app.Config.Input.MaxSize)}
		if !opts.Plain {
			handlerOpts = append(handlerOpts, runner.WithTextHandlerRenderer(tui.NewRenderer(0)))
		}
		handler = runner.NewTextHandler(opts.In, opts.Out, handlerOpts...)
	}

	r := runner.NewRunner(runner.WithInputHandler(handler), runner.WithLogger(app.Logger))
	sim, err := r.Run(ctx, stepper)
	if errors.Is(err, context.Canceled) {
		// Ctrl+C ends the run like quit.
		return sim, nil
	}
	return sim, err
}

func newStepper(ctx context.Context, app *App, opts StepOptions) (runner.Stepper, error) {
	if opts.SessionID == "" {
		sim, err := app.Engine.Simulate(ctx, opts.Definition, opts.Definition.Mode, opts.Input)
		if err != nil {
			return nil, err
		}
		return runner.Local(sim), nil
	}

	if opts.Resume {
		sess, err := app.Sessions.Load(ctx, opts.SessionID)
		switch {
		case err == nil:
			app.Logger.InfoContext(ctx, "Session Resumed", "session_id", opts.SessionID, "position", sess.Simulation.Position)
			return runner.Session(app.Sessions, opts.SessionID), nil
		case !errors.Is(err, domain.ErrSessionNotFound):
			return nil, err
		}
	}

	if _, err := app.Sessions.Start(ctx, opts.SessionID, opts.Definition, opts.Definition.Mode, opts.Input); err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	app.Logger.InfoContext(ctx, "Session Created", "session_id", opts.SessionID)
	return runner.Session(app.Sessions, opts.SessionID), nil
}
