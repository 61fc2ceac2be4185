package cmd

import (
	"fmt"

	"github.com/onvifscout/scout-release/internal/domain"
	"github.com/onvifscout/scout-release/internal/usecase"
	"github.com/spf13/cobra"
)

func newNotesCmd(c *container) *cobra.Command {
	var (
		notesVersion string
		notesBody    bool
	)
	cmd := &cobra.Command{
		Use:   "notes",
		Short: "Print the changelog section of a version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.load(); err != nil {
				return err
			}
			if notesVersion == "" {
				read := &usecase.UpdateVersionFileUseCase{FS: c.fsRepo}
				current, err := read.Read(cmd.Context(), c.cfg.VersionFile)
				if err != nil {
					return err
				}
				notesVersion = current
			}
			version, err := domain.NewVersion(notesVersion)
			if err != nil {
				return fmt.Errorf("invalid version %q: %w", notesVersion, err)
			}
			extract := &usecase.ExtractReleaseNotesUseCase{FS: c.fsRepo}
			notes, err := extract.Execute(cmd.Context(), c.cfg.ChangelogFile, version)
			if err != nil {
				return err
			}
			if notesBody {
				body := &usecase.PrepareReleaseBodyUseCase{PackageName: c.cfg.PackageName}
				notes, err = body.Execute(cmd.Context(), &domain.Release{
					Version: version,
					TagName: version.TagName(),
					Notes:   notes,
				})
				if err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), notes)
			return nil
		},
	}
	cmd.Flags().StringVar(&notesVersion, "version", "", "Version to extract (default: the version file)")
	cmd.Flags().BoolVar(&notesBody, "body", false, "Render the full GitHub release body")
	return cmd
}
