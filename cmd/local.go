package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/onvifscout/scout-release/internal/orchestrator"
	"github.com/spf13/cobra"
)

func newLocalCmd(c *container) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "local <" + strings.Join(orchestrator.LocalCommands, "|") + "> [semantic-release flags]",
		Short: "Run semantic-release from a maintainer checkout",
		Long: `Load GH_TOKEN and PYPI_TOKEN from the nearest .env file (searching
parent directories) and run semantic-release with the given command.
The exit code of semantic-release is passed through.`,
		Args:      cobra.MinimumNArgs(1),
		ValidArgs: orchestrator.LocalCommands,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.loadLogger(); err != nil {
				return err
			}
			wd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
			runner := orchestrator.NewLocalRunner(c.fsRepo, c.semanticRelease(), wd, c.logger)
			runner.SetOutput(cmd.OutOrStdout(), cmd.ErrOrStderr())
			_, err = runner.Execute(cmd.Context(), args[0], args[1:]...)
			return err
		},
	}
	// Flags after the subcommand belong to semantic-release
	cmd.Flags().SetInterspersed(false)
	return cmd
}
