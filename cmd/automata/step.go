package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/automata/internal/cli"
	"github.com/aretw0/automata/internal/presentation/tui"
	"github.com/aretw0/automata/pkg/domain"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var stepCmd = &cobra.Command{
	Use:   "step [file]",
	Short: "Walk through a run one symbol at a time",
	Long: `Starts an interactive run. Enter (or "n") moves forward, "b" goes back,
"r" restarts and "q" quits. With --session the run is stored and can be
picked up again later with --resume.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, _ := cmd.Flags().GetString("session")
		resume, _ := cmd.Flags().GetBool("resume")
		asJSON, _ := cmd.Flags().GetBool("json")
		plain, _ := cmd.Flags().GetBool("plain")
		input, _ := cmd.Flags().GetString("input")

		if resume && sessionID == "" {
			return errors.New("--resume needs --session")
		}

		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		def, _, err := cli.LoadDefinition(ctx, app.Engine.Catalog(), sourceFrom(cmd, args), cmd.InOrStdin())
		if err != nil && !(resume && errors.Is(err, cli.ErrNoSource)) {
			return err
		}

		out := cmd.OutOrStdout()
		if !asJSON && !plain && !isTerminal(os.Stdout) {
			plain = true
		}
		if !asJSON && !plain {
			tui.PrintBanner(out)
		}

		sim, err := cli.RunSteps(ctx, app, cli.StepOptions{
			Definition: def,
			Input:      input,
			SessionID:  sessionID,
			Resume:     resume,
			JSON:       asJSON,
			Plain:      plain,
			In:         cmd.InOrStdin(),
			Out:        out,
		})
		if err != nil {
			return err
		}
		if !asJSON && sim.Status != domain.StatusUninitialized {
			cli.PrintSystemMessage(out, "run %d stopped at position %d: %s", sim.RunID, sim.Position, tui.Verdict(out, sim))
		}
		return nil
	},
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func init() {
	rootCmd.AddCommand(stepCmd)
	addSourceFlags(stepCmd)
	stepCmd.Flags().StringP("input", "i", "", "Input string to step through")
	stepCmd.Flags().StringP("session", "s", "", "Store the run under this session ID")
	stepCmd.Flags().Bool("resume", false, "Resume the stored session instead of starting over")
	stepCmd.Flags().Bool("json", false, "Speak JSON lines on stdin/stdout")
	stepCmd.Flags().Bool("plain", false, "Disable markdown rendering and the banner")
}
