package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/onvifscout/scout-release/internal/orchestrator"
	"github.com/onvifscout/scout-release/internal/service"
	"github.com/spf13/cobra"
)

func newDoctorCmd(_ *container) *cobra.Command {
	var python string
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that the external release tools are installed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if python == "" {
				python = os.Getenv("PYTHON_BIN")
			}
			statuses := service.CheckBinaries(service.DefaultRequirements(python))
			rows := make([][]string, 0, len(statuses))
			for _, s := range statuses {
				state := "ok"
				if !s.Available {
					state = "missing"
					if s.Optional {
						state = "missing (optional)"
					}
				}
				rows = append(rows, []string{s.Name, state, s.Detail, s.Description})
			}
			fmt.Fprintln(cmd.OutOrStdout(), orchestrator.RenderTable(
				[]string{"Tool", "Status", "Path", "Used for"}, rows, nil))
			if missing := service.MissingRequired(statuses); len(missing) > 0 {
				return fmt.Errorf("missing required tools: %s", strings.Join(missing, ", "))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&python, "python", "", "Python interpreter used for builds (default: $PYTHON_BIN or python)")
	return cmd
}
