package cmd

import (
	"context"

	"github.com/onvifscout/scout-release/internal/domain"
	"github.com/onvifscout/scout-release/internal/orchestrator"
	"github.com/spf13/cobra"
)

func newCICmd(c *container) *cobra.Command {
	var ciOutput bool
	cmd := &cobra.Command{
		Use:   "ci",
		Short: "Run the pipeline matching the current GitHub Actions event",
		Long: `Read GITHUB_EVENT_NAME, GITHUB_REF and the event payload and run:
- release for a manual workflow_dispatch (inputs prerelease and dry_run)
- lint for a push or pull request on the main branch
- publish for a published GitHub release
Any other event is a successful no-op.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := c.dispatcher()
			if err != nil {
				return err
			}
			_, err = d.Dispatch(cmd.Context(), ciOutput)
			return err
		},
	}
	cmd.Flags().BoolVar(&ciOutput, "ci-output", true, "Output key=value lines for GitHub Actions")
	return cmd
}

// The lazy runners build their orchestrator only when the dispatcher picks it.

type lazyRelease struct{ c *container }

func (l lazyRelease) Execute(ctx context.Context, cfg orchestrator.ReleaseConfig) error {
	orch, err := l.c.releaseOrchestrator()
	if err != nil {
		return err
	}
	return orch.Execute(ctx, cfg)
}

type lazyLint struct{ c *container }

func (l lazyLint) Execute(ctx context.Context, cfg orchestrator.LintConfig) (domain.LintReport, error) {
	orch, err := l.c.lintOrchestrator()
	if err != nil {
		return domain.LintReport{}, err
	}
	return orch.Execute(ctx, cfg)
}

type lazyPublish struct{ c *container }

func (l lazyPublish) Execute(ctx context.Context, cfg orchestrator.PublishConfig) error {
	orch, err := l.c.publishOrchestrator()
	if err != nil {
		return err
	}
	return orch.Execute(ctx, cfg)
}
