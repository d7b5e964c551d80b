package main

import (
	"fmt"

	"github.com/aretw0/automata/internal/cli"
	"github.com/aretw0/automata/internal/presentation/graph"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph [file]",
	Short: "Print a Mermaid diagram of the automaton",
	Long: `Prints the state diagram as a Mermaid flowchart. With --input the states the
run passed through are highlighted, along with where it ended.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		ctx := cmd.Context()
		def, _, err := cli.LoadDefinition(ctx, app.Engine.Catalog(), sourceFrom(cmd, args), cmd.InOrStdin())
		if err != nil {
			return err
		}
		a, err := app.Engine.Validate(def)
		if err != nil {
			return err
		}

		var overlay *graph.Overlay
		if cmd.Flags().Changed("input") {
			input, _ := cmd.Flags().GetString("input")
			sim, err := app.Engine.Simulate(ctx, def, def.Mode, input)
			if err != nil {
				return err
			}
			snap := sim.Snapshot()
			for !snap.Finished {
				snap = sim.Forward(ctx)
			}
			overlay = graph.OverlayFrom(snap)
		}

		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(a, overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	addSourceFlags(graphCmd)
	graphCmd.Flags().StringP("input", "i", "", "Highlight the run over this input")
}
