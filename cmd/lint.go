package cmd

import (
	"github.com/onvifscout/scout-release/internal/orchestrator"
	"github.com/spf13/cobra"
)

func newLintCmd(c *container) *cobra.Command {
	var ciOutput bool
	cmd := &cobra.Command{
		Use:   "lint [paths...]",
		Short: "Run ruff check and ruff format --check",
		Long: `Run both ruff checks. Both always run; the command fails when either
reports a problem. With --ci-output findings become GitHub annotations.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := c.lintOrchestrator()
			if err != nil {
				return err
			}
			orch.SetOutput(cmd.OutOrStdout())
			_, err = orch.Execute(cmd.Context(), orchestrator.LintConfig{Paths: args, CIOutput: ciOutput})
			return err
		},
	}
	cmd.Flags().BoolVar(&ciOutput, "ci-output", false, "Output annotations and key=value lines for GitHub Actions")
	return cmd
}
