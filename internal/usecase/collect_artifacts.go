package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/onvifscout/scout-release/internal/domain"
	"github.com/spf13/afero"
)

// ErrNoArtifacts is returned when the dist directory has no distributions.
var ErrNoArtifacts = errors.New("no distribution artifacts found")

// CollectArtifactsUseCase lists wheels and sdists in the dist directory.
type CollectArtifactsUseCase struct {
	FS afero.Fs
}

// Execute returns the distributions in dir sorted by name.
func (uc *CollectArtifactsUseCase) Execute(_ context.Context, dir string) ([]domain.Artifact, error) {
	entries, err := afero.ReadDir(uc.FS, dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s does not exist", ErrNoArtifacts, dir)
		}
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}
	var artifacts []domain.Artifact
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		artifact := domain.Artifact{
			Name: entry.Name(),
			Path: filepath.Join(dir, entry.Name()),
			Size: entry.Size(),
			Kind: domain.ClassifyArtifact(entry.Name()),
		}
		if artifact.IsDistribution() {
			artifacts = append(artifacts, artifact)
		}
	}
	if len(artifacts) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoArtifacts, dir)
	}
	sort.Slice(artifacts, func(i, j int) bool { return artifacts[i].Name < artifacts[j].Name })
	return artifacts, nil
}

// ArtifactPaths returns the paths of artifacts.
func ArtifactPaths(artifacts []domain.Artifact) []string {
	paths := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		paths = append(paths, a.Path)
	}
	return paths
}
