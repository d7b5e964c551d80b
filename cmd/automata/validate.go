package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/automata/internal/cli"
	"github.com/aretw0/automata/pkg/codec"
	"github.com/aretw0/automata/pkg/domain"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Check an automaton definition",
	Long: `Validates a JSON or YAML automaton document (or a catalog entry) and reports the
first problem with its field and transition line. Undefined DFA moves are listed as warnings.`,
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
			var verr *domain.ValidationError
			if errors.As(err, &verr) {
				return fmt.Errorf("validation failed at %s: %s", verr.Location(), verr.Reason)
			}
			return fmt.Errorf("validation failed: %w", err)
		}

		out := cmd.OutOrStdout()
		if format, _ := cmd.Flags().GetString("print"); format != "" {
			f, err := codec.ParseFormat(format)
			if err != nil {
				return err
			}
			data, err := codec.Encode(codec.FromAutomaton(a), f)
			if err != nil {
				return err
			}
			_, err = out.Write(data)
			return err
		}

		fmt.Fprintf(out, "%s with %d states over {%s} is valid! ✅\n", strings.ToUpper(a.Mode().String()), len(a.States), strings.Join(a.Alphabet, ","))
		for _, k := range a.Missing() {
			cli.PrintSystemMessage(out, "no move for state '%s' on '%s' (the run stops there)", k.State, k.Symbol)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	addSourceFlags(validateCmd)
	validateCmd.Flags().String("print", "", "Print the normalized document as json or yaml")
}

