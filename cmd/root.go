package cmd

import (
	"github.com/onvifscout/scout-release/internal/logging"
	"github.com/onvifscout/scout-release/pkg/version"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "scout-release",
	Short: "Release tooling for the onvifscout Python package",
	Long: `scout-release versions, lints, tags and publishes onvifscout.

It drives semantic-release, ruff, python -m build and twine, creates the
GitHub release, and dispatches the matching pipeline from GitHub Actions.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// logFlags hold the persistent logging flags.
var logFlags struct {
	level  string
	format string
}

func Execute() error {
	return rootCmd.Execute()
}

// InitCommands registers every command with a shared container.
func InitCommands() error {
	rootCmd.PersistentFlags().StringVar(&logFlags.level, "log-level", "",
		"Log level: debug, info, warn or error (default from config)")
	rootCmd.PersistentFlags().StringVar(&logFlags.format, "log-format", "",
		"Log format: structured or console (default: console on a terminal)")

	rootCmd.Version = version.Summary()
	c := newContainer()
	rootCmd.PersistentPostRun = func(_ *cobra.Command, _ []string) {
		_ = logging.Sync(c.logger)
	}
	rootCmd.AddCommand(
		newReleaseCmd(c),
		newLintCmd(c),
		newPublishCmd(c),
		newCICmd(c),
		newLocalCmd(c),
		newNotesCmd(c),
		newWorkflowsCmd(c),
		newDoctorCmd(c),
		newVersionCmd(),
	)
	return nil
}

// newLogger builds a logger from the flags, falling back to configured values.
func newLogger(level, format string) (*zap.Logger, error) {
	if logFlags.level != "" {
		level = logFlags.level
	}
	if logFlags.format != "" {
		format = logFlags.format
	}
	return logging.NewFactory().Create(level, format)
}
