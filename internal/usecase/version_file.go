package usecase

import (
	"context"
	"fmt"
	"regexp"

	"github.com/onvifscout/scout-release/internal/domain"
	"github.com/onvifscout/scout-release/internal/repository"
	"github.com/spf13/afero"
)

var versionAssignment = regexp.MustCompile(`(?m)^__version__\s*=\s*["']([^"']+)["']`)

// UpdateVersionFileUseCase rewrites the package version module.
type UpdateVersionFileUseCase struct {
	FS afero.Fs
}

// Execute overwrites path with `__version__ = "<version>"`.
func (uc *UpdateVersionFileUseCase) Execute(_ context.Context, path string, version *domain.Version) error {
	if version == nil {
		return fmt.Errorf("version cannot be nil")
	}
	content := fmt.Sprintf("__version__ = %q\n", version.Plain())
	if err := repository.WriteFileAtomic(uc.FS, path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write version file: %w", err)
	}
	return nil
}

// Read returns the version assigned in path.
func (uc *UpdateVersionFileUseCase) Read(_ context.Context, path string) (string, error) {
	data, err := afero.ReadFile(uc.FS, path)
	if err != nil {
		return "", fmt.Errorf("failed to read version file: %w", err)
	}
	m := versionAssignment.FindSubmatch(data)
	if m == nil {
		return "", fmt.Errorf("no __version__ assignment in %s", path)
	}
	return string(m[1]), nil
}
