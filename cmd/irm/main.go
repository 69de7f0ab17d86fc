package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/irm/internal/config"
)

const (
	appName = "irm"
	version = "v0.4.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// newRootCmd assembles the command tree.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Impact propagation tracer for portfolio risk",
		Version: version,
		Long: `irm traces a shock on one node of the market ontology graph through its
dependency edges and estimates the resulting portfolio NAV shock.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, _ := cmd.Flags().GetString("log-level")
			return setLogLevel(level)
		},
	}

	rootCmd.PersistentFlags().String("config", config.DefaultPath, "Path to YAML configuration")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug|info|warn|error)")

	rootCmd.AddCommand(newTraceCmd())    // Impact propagation
	rootCmd.AddCommand(newHoldingsCmd()) // Portfolio inspection
	rootCmd.AddCommand(newQueryCmd())    // Raw graph access

	return rootCmd
}

func setLogLevel(level string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(lvl)
	return nil
}
