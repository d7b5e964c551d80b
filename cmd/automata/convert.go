package main

import (
	"fmt"
	"os"

	"github.com/aretw0/automata/internal/cli"
	"github.com/aretw0/automata/pkg/codec"
	"github.com/aretw0/automata/pkg/convert"
	"github.com/aretw0/automata/pkg/domain"
	"github.com/spf13/cobra"
)

var convertCmd = &cobra.Command{
	Use:   "convert KIND [file]",
	Short: "Convert an automaton: nfa-to-dfa, minimize or regex-to-nfa",
	Long: `Applies a conversion and prints the resulting document.

  automata convert nfa-to-dfa nfa.yaml
  automata convert minimize -e even-zeros --format yaml
  automata convert regex-to-nfa --regex '(a|b)*abb'`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := domain.ParseConversion(args[0])
		if err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("format")
		f, err := codec.ParseFormat(format)
		if err != nil {
			return err
		}

		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		ctx := cmd.Context()
		req := convert.Request{Kind: kind}
		if kind == domain.ConversionRegexToNFA {
			req.Regex, _ = cmd.Flags().GetString("regex")
		} else {
			def, _, err := cli.LoadDefinition(ctx, app.Engine.Catalog(), sourceFrom(cmd, args[1:]), cmd.InOrStdin())
			if err != nil {
				return err
			}
			a, err := app.Engine.Validate(def)
			if err != nil {
				return err
			}
			req.Document = codec.FromAutomaton(a)
		}

		doc, err := app.Engine.Convert(ctx, req)
		if err != nil {
			return fmt.Errorf("%s failed: %w", kind, err)
		}
		data, err := codec.Encode(doc, f)
		if err != nil {
			return err
		}

		if path, _ := cmd.Flags().GetString("out"); path != "" {
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return err
			}
			cli.PrintSystemMessage(cmd.OutOrStdout(), "%s with %d states written to %s", doc.Type, len(doc.States), path)
			return nil
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

func init() {
	rootCmd.AddCommand(convertCmd)
	addSourceFlags(convertCmd)
	convertCmd.Flags().String("regex", "", "Regular expression for regex-to-nfa")
	convertCmd.Flags().String("format", "json", "Output format: json or yaml")
	convertCmd.Flags().StringP("out", "o", "", "Write the result to a file instead of stdout")
}
