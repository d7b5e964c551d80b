package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aretw0/automata"
	"github.com/aretw0/automata/internal/cli"
	"github.com/aretw0/automata/internal/presentation/tui"
	"github.com/aretw0/automata/pkg/domain"
	"github.com/aretw0/automata/pkg/runner"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [file]",
	Short: "Evaluate input strings in one go",
	Long: `Runs each --input through the automaton and prints its trace and verdict.
With --samples the suggested inputs of a catalog entry are used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		ctx := cmd.Context()
		def, samples, err := cli.LoadDefinition(ctx, app.Engine.Catalog(), sourceFrom(cmd, args), cmd.InOrStdin())
		if err != nil {
			return err
		}

		inputs, _ := cmd.Flags().GetStringArray("input")
		if useSamples, _ := cmd.Flags().GetBool("samples"); useSamples {
			inputs = append(inputs, samples...)
		}
		if len(inputs) == 0 {
			return errors.New("nothing to run: pass --input (repeatable) or --samples")
		}

		sanitizer := runner.Sanitizer{MaxSize: cfg.Input.MaxSize}
		results := make([]*automata.Result, 0, len(inputs))
		for _, in := range inputs {
			clean, err := sanitizer.Sanitize(in)
			if err != nil {
				return fmt.Errorf("input %q rejected: %w", in, err)
			}
			res, err := app.Engine.Process(ctx, def, def.Mode, clean)
			if err != nil {
				return err
			}
			results = append(results, res)
		}

		out := cmd.OutOrStdout()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(results)
		}
		for _, res := range results {
			fmt.Fprintf(out, "%q: %s\n    %s\n", res.Input, verdictOf(cmd, res), res.Formula)
		}
		return nil
	},
}

func verdictOf(cmd *cobra.Command, res *automata.Result) string {
	return tui.Verdict(cmd.OutOrStdout(), domain.Simulation{
		Finished: true,
		Accepted: res.Accepted,
		DeadEnd:  res.DeadEnd,
	})
}

func init() {
	rootCmd.AddCommand(runCmd)
	addSourceFlags(runCmd)
	runCmd.Flags().StringArrayP("input", "i", nil, "Input string to evaluate (repeatable)")
	runCmd.Flags().Bool("samples", false, "Also run the sample inputs of the catalog entry")
	runCmd.Flags().Bool("json", false, "Print results as JSON")
}
