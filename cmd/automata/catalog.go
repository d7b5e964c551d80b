package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/aretw0/automata/pkg/codec"
	"github.com/spf13/cobra"
)

var catalogCmd = &cobra.Command{
	Use:     "catalog",
	Aliases: []string{"examples"},
	Short:   "List the ready-made automata",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		entries, err := app.Engine.Catalog().List(cmd.Context())
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tMODE\tTITLE")
		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Name, e.Definition.Mode, e.Title)
		}
		return tw.Flush()
	},
}

var catalogShowCmd = &cobra.Command{
	Use:   "show NAME",
	Short: "Print a catalog entry as a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
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

		entry, err := app.Engine.Catalog().Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		doc, err := codec.FromDefinition(entry.Definition, app.Engine.ValidatorOptions()...)
		if err != nil {
			return err
		}
		data, err := codec.Encode(doc, f)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if entry.Description != "" {
			fmt.Fprintf(out, "# %s\n", strings.ReplaceAll(strings.TrimSpace(entry.Description), "\n", "\n# "))
		}
		if len(entry.Samples) > 0 {
			fmt.Fprintf(out, "# samples: %s\n", strings.Join(entry.Samples, ", "))
		}
		_, err = out.Write(data)
		return err
	},
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogShowCmd)
	catalogShowCmd.Flags().String("format", "yaml", "Output format: json or yaml")
}
