package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/automata/pkg/domain"
)

// LoggingHooks writes every lifecycle event to logger. Steps are logged at
// debug level, run boundaries at info.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnRunStart: func(ctx context.Context, e *domain.RunEvent) {
			logger.InfoContext(ctx, "run_start",
				"run_id", e.RunID,
				"mode", e.Mode,
				"input", e.Input,
			)
		},
		OnStep: func(ctx context.Context, e *domain.StepEvent) {
			logger.DebugContext(ctx, "step",
				"run_id", e.RunID,
				"direction", e.Direction,
				"position", e.Position,
				"symbol", e.Symbol,
				"from", e.From.String(),
				"to", e.To.String(),
				"dead_end", e.DeadEnd,
			)
		},
		OnRunFinish: func(ctx context.Context, e *domain.RunEvent) {
			logger.InfoContext(ctx, "run_finish",
				"run_id", e.RunID,
				"mode", e.Mode,
				"accepted", e.Accepted,
				"dead_end", e.DeadEnd,
				"final", e.Final.String(),
			)
		},
	}
}
