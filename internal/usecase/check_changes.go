package usecase

import (
	"context"
	"fmt"

	"github.com/onvifscout/scout-release/internal/repository"
)

// CheckChangesUseCase decides whether anything was committed since the last release.
type CheckChangesUseCase struct {
	GitRepo repository.GitRepository
}

// Execute returns whether there are unreleased commits and the latest tag.
func (uc *CheckChangesUseCase) Execute(ctx context.Context) (bool, string, error) {
	latestTag, err := uc.GitRepo.LatestTag(ctx)
	if err != nil {
		return false, "", fmt.Errorf("failed to get latest tag: %w", err)
	}
	if latestTag == "" {
		return true, "", nil // Initial release
	}
	commitsSince, err := uc.GitRepo.CommitsSinceTag(ctx, latestTag)
	if err != nil {
		return false, latestTag, fmt.Errorf("failed to get commits since tag: %w", err)
	}
	return commitsSince > 0, latestTag, nil
}
