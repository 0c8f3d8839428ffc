package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cwbudde/algo-mstransform/internal/logging"
)

var (
	logLevel  string
	logFormat string
	verbosity int
	quiet     bool
)

var rootCmd = &cobra.Command{
	Use:   "mstransform",
	Short: "Transform visibility archives",
	Long: `mstransform selects, averages, combines, splits and regrids the spectral
windows of a visibility archive and writes a new, reindexed archive.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides -v)")
	pf.StringVar(&logFormat, "log-format", "text", "Log format: text or json")
	pf.CountVarP(&verbosity, "verbose", "v", "Increase verbosity (-v info, -vv debug)")
	pf.BoolVarP(&quiet, "quiet", "q", false, "Suppress all logging")
}

// newLogger builds the logger of a command; logs go to stderr.
func newLogger(cmd *cobra.Command) (*slog.Logger, error) {
	level := logging.LevelFromVerbosity(verbosity, quiet)
	if logLevel != "" && !quiet {
		level = logging.LevelFromString(logLevel)
	}

	return logging.New(cmd.ErrOrStderr(), level, logFormat)
}
