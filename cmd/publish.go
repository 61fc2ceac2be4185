package cmd

import (
	"github.com/onvifscout/scout-release/internal/orchestrator"
	"github.com/spf13/cobra"
)

func newPublishCmd(c *container) *cobra.Command {
	var cfg orchestrator.PublishConfig
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Build and upload the release to PyPI",
		Long: `Build the distributions, verify them with twine check and upload them
with twine. A version that is already on PyPI is left alone.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			orch, err := c.publishOrchestrator()
			if err != nil {
				return err
			}
			orch.SetOutput(cmd.OutOrStdout())
			return orch.Execute(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&cfg.Tag, "tag", "", "Release tag to publish (default: the version file)")
	cmd.Flags().BoolVar(&cfg.DryRun, "dry-run", false, "Build and verify without uploading")
	cmd.Flags().BoolVar(&cfg.SkipExisting, "skip-existing", false, "Pass --skip-existing to twine upload")
	cmd.Flags().StringVar(&cfg.RepositoryURL, "repository-url", "", "Upload to another index, such as TestPyPI")
	cmd.Flags().BoolVar(&cfg.SkipBuild, "skip-build", false, "Upload what is already in the dist directory")
	cmd.Flags().BoolVar(&cfg.CIOutput, "ci-output", false, "Output key=value lines for GitHub Actions")
	return cmd
}
