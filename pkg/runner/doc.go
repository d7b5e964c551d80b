/*
Package runner drives a step-by-step simulation from an interactive front end.

It sits between a Stepper (a local simulator or a stored session) and the user.
Commands come in and snapshots go out through a pluggable IOHandler, so the same
loop serves a terminal and a JSON-lines pipe.

# Key Components

  - Runner: reads commands and applies them until quit or end of input.
  - Stepper: Local wraps an in-process simulator, Session a session.Manager run.
  - TextHandler: prompt based terminal IO with an optional markdown renderer.
  - JSONHandler: one JSON object per line in both directions.
  - Sanitizer: size and control character policy for user typed input.

# Usage

	sim, _ := eng.Simulate(ctx, def, "", "0101")
	r := runner.NewRunner(
		runner.WithInputHandler(runner.NewTextHandler(os.Stdin, os.Stdout)),
	)
	final, err := r.Run(ctx, runner.Local(sim))
*/
package runner
