package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/automata/internal/cli"
	"github.com/aretw0/automata/internal/config"
	"github.com/spf13/cobra"
)

var (
	cfg    config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "automata",
	Short: "Automata validates, simulates and converts finite automata",
	Long: `Automata checks DFA and NFA definitions, steps through runs symbol by symbol,
converts between NFA, DFA, minimal DFA and regular expressions, and serves all of it
over HTTP and the Model Context Protocol.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			loaded.LogLevel, _ = cmd.Flags().GetString("log-level")
		}
		cfg = loaded
		logger = cli.NewLogger(cfg.LogLevel)
		slog.SetDefault(logger)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "YAML or JSON config file (AUTOMATA_* variables override it)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn or error")
}

// addSourceFlags registers the flags read by sourceFrom.
func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("example", "e", "", "Load a catalog entry instead of a file")
	cmd.Flags().StringP("mode", "m", "", "Override the automaton mode: dfa or nfa")
}

// sourceFrom reads the automaton source from the first argument and flags.
func sourceFrom(cmd *cobra.Command, args []string) cli.Source {
	var src cli.Source
	if len(args) > 0 {
		src.File = args[0]
	}
	src.Entry, _ = cmd.Flags().GetString("example")
	src.Mode, _ = cmd.Flags().GetString("mode")
	return src
}

func newApp() (*cli.App, error) {
	return cli.Build(cfg, logger)
}
