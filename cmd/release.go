package cmd

import (
	"github.com/onvifscout/scout-release/internal/domain"
	"github.com/onvifscout/scout-release/internal/orchestrator"
	"github.com/spf13/cobra"
)

// newReleaseCmd creates the release command
func newReleaseCmd(c *container) *cobra.Command {
	var (
		releasePrerelease     string
		releaseDryRun         bool
		releaseForce          bool
		releaseCIOutput       bool
		releaseSkipPush       bool
		releaseEnableRollback bool
		releaseRollback       bool
		releaseSessionID      string
	)
	cmd := &cobra.Command{
		Use:   "release",
		Short: "Version, tag and release onvifscout",
		Long: `Run the semantic release workflow.

This command orchestrates the entire release:
- Checks for commits since the last release tag
- Asks semantic-release for the next version
- Writes the version file and prepends the changelog
- Commits, tags v<version> and pushes
- Builds the sdist and wheel
- Creates the GitHub release with the distributions attached

A dry run prints the version, changelog section and release body without
writing anything. With --enable-rollback every completed step is recorded
and undone if a later step fails; --rollback undoes a recorded session.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			channel, err := domain.ParsePrereleaseChannel(releasePrerelease)
			if err != nil {
				return err
			}
			orch, err := c.releaseOrchestrator()
			if err != nil {
				return err
			}
			orch.SetOutput(cmd.OutOrStdout())
			return orch.Execute(cmd.Context(), orchestrator.ReleaseConfig{
				Prerelease:     channel,
				DryRun:         releaseDryRun,
				Force:          releaseForce,
				CIOutput:       releaseCIOutput,
				SkipPush:       releaseSkipPush,
				EnableRollback: releaseEnableRollback,
				Rollback:       releaseRollback,
				SessionID:      releaseSessionID,
			})
		},
	}

	cmd.Flags().StringVar(&releasePrerelease, "prerelease", "none", "Prerelease channel: none, alpha, beta or rc")
	cmd.Flags().BoolVar(&releaseDryRun, "dry-run", false, "Compute and print the release without writing anything")
	cmd.Flags().BoolVar(&releaseForce, "force", false, "Ask for a version even if no commits landed since the last tag")
	cmd.Flags().BoolVar(&releaseCIOutput, "ci-output", false, "Output key=value lines for GitHub Actions")
	cmd.Flags().BoolVar(&releaseSkipPush, "skip-push", false, "Commit, tag and build locally without pushing or releasing")
	cmd.Flags().BoolVar(&releaseEnableRollback, "enable-rollback", false, "Enable automatic rollback on failure")
	cmd.Flags().BoolVar(&releaseRollback, "rollback", false, "Rollback a failed release session")
	cmd.Flags().
		StringVar(&releaseSessionID, "session-id", "", "Session ID to rollback (uses latest if not specified)")
	return cmd
}
