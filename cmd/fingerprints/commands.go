package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/utndatasystems/string-fingerprints/internal/logging"
)

// cli carries the flags shared by every command.
type cli struct {
	logLevel  string
	logFormat string
	logger    *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:   "fingerprints",
		Short: "Optimise byte partitions for string fingerprints",
		Long: `fingerprints searches byte-to-bin partitions that minimise the
false-positive rate of bitmask fingerprints on a corpus of words and
substring patterns, and evaluates the partitions a search produced.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.New(c.logLevel, c.logFormat, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			c.logger = logger
			slog.SetDefault(logger)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&c.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&c.logFormat, "log-format", "text", "Log format (text or json)")

	rootCmd.AddCommand(
		c.newServeCmd(),
		c.newOptimizeCmd(),
		c.newEvaluateCmd(),
		c.newScoreCmd(),
	)
	return rootCmd
}
