package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/onvifscout/scout-release/internal/domain"
	"github.com/onvifscout/scout-release/internal/repository"
	"github.com/onvifscout/scout-release/internal/service"
)

// ErrNoRelease is returned when semantic-release finds nothing to release.
var ErrNoRelease = errors.New("no release required")

// CalculateVersionUseCase asks semantic-release for the next version.
type CalculateVersionUseCase struct {
	GitRepo         repository.GitRepository
	SemanticRelease service.SemanticReleaseService
}

// Execute returns the next version for channel, or ErrNoRelease when the
// printed version is empty or equal to the latest tag.
func (uc *CalculateVersionUseCase) Execute(ctx context.Context, channel domain.PrereleaseChannel) (*domain.Version, error) {
	latestTag, err := uc.GitRepo.LatestTag(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest tag: %w", err)
	}
	printed, err := uc.SemanticRelease.NextVersion(ctx, channel)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate next version: %w", err)
	}
	if printed == "" {
		return nil, ErrNoRelease
	}
	if err := domain.ValidateVersionString(printed); err != nil {
		return nil, err
	}
	next, err := domain.NewVersion(printed)
	if err != nil {
		return nil, err
	}
	if latestTag != "" {
		if current, err := domain.NewVersion(latestTag); err == nil && current.Equal(next) {
			return nil, fmt.Errorf("%w: %s is already tagged", ErrNoRelease, next.TagName())
		}
	}
	return next, nil
}
