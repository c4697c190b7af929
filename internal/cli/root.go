package cli

import (
	"os"
	"time"

	"github.com/dennisdiepolder/monti/acw/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// cfg is loaded before any subcommand runs
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "acw",
	Short: "After-call work reporting for contact center agents",
	Long: `acw computes the average after-call work per service from a transaction log.

For every agent and day, the gap between the first completed transaction and
the next transaction is the after-call work. Gaps are averaged per service.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(generateCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.RFC3339})

	loaded, err := config.Load()
	if err != nil {
		return err
	}
	cfg = loaded

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	return nil
}
