package cmd

import (
	"fmt"

	"github.com/onvifscout/scout-release/internal/workflows"
	"github.com/spf13/cobra"
)

func newWorkflowsCmd(c *container) *cobra.Command {
	var (
		outDir string
		stdout bool
		wfCfg  = workflows.DefaultConfig()
	)
	cmd := &cobra.Command{
		Use:   "workflows",
		Short: "Generate the GitHub Actions workflows that run scout-release",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if stdout {
				files, err := workflows.Generate(wfCfg)
				if err != nil {
					return err
				}
				for _, f := range files {
					fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s---\n", f.Name, f.Content)
				}
				return nil
			}
			if err := c.loadLogger(); err != nil {
				return err
			}
			paths, err := workflows.Write(c.fsRepo, outDir, wfCfg)
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", p)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&outDir, "out", workflows.DefaultDir, "Directory to write the workflows to")
	cmd.Flags().BoolVar(&stdout, "stdout", false, "Print the workflows instead of writing them")
	cmd.Flags().StringVar(&wfCfg.MainBranch, "main-branch", wfCfg.MainBranch, "Branch that lint runs on")
	cmd.Flags().StringVar(&wfCfg.PythonVersion, "python-version", wfCfg.PythonVersion, "Python version for setup-python")
	cmd.Flags().StringVar(&wfCfg.Install, "install", wfCfg.Install, "go install target for scout-release")
	return cmd
}
