package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/onvifscout/scout-release/pkg/version"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	var short bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show the scout-release build",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if short {
				fmt.Fprintln(out, version.Summary())
				return nil
			}
			fmt.Fprintf(out, "scout-release %s\n", orDefault(version.Version, "dev"))
			fmt.Fprintf(out, "  commit:   %s\n", orDefault(version.CommitHash, "unknown"))
			fmt.Fprintf(out, "  built:    %s\n", orDefault(version.BuildDate, "unknown"))
			fmt.Fprintf(out, "  go:       %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
			return nil
		},
	}
	cmd.Flags().BoolVar(&short, "short", false, "Print only the version and short commit")
	return cmd
}

func orDefault(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}
