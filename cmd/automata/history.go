package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the recent operations",
	Long:  `Lists recorded runs and conversions, newest last. Only stores that persist across processes (redis) remember earlier invocations.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		entries, err := app.Engine.History(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		}
		if len(entries) == 0 {
			fmt.Fprintln(out, "No history yet.")
			return nil
		}
		for _, e := range entries {
			fmt.Fprintf(out, "%s  %-8s %s\n", e.Timestamp.Format(time.DateTime), e.Topic, e.Operation)
			if e.Formula != "" {
				fmt.Fprintf(out, "    %s\n", e.Formula)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().Bool("json", false, "Print entries as JSON")
}
