package repository

import (
	"context"
	"errors"
)

// ErrReleaseNotFound is returned when no GitHub release exists for a tag.
var ErrReleaseNotFound = errors.New("github release not found")

// ReleaseInput describes a GitHub release to create.
type ReleaseInput struct {
	TagName         string
	Name            string
	Body            string
	TargetCommitish string
	Prerelease      bool
	Draft           bool
}

// ReleaseInfo is the subset of a GitHub release the pipeline uses.
type ReleaseInfo struct {
	ID         int64
	TagName    string
	HTMLURL    string
	Prerelease bool
	Assets     []string
}

// GithubRepository defines the GitHub release API operations.
type GithubRepository interface {
	CreateRelease(ctx context.Context, in ReleaseInput) (*ReleaseInfo, error)
	GetReleaseByTag(ctx context.Context, tag string) (*ReleaseInfo, error)
	DeleteRelease(ctx context.Context, id int64) error
	UploadReleaseAsset(ctx context.Context, releaseID int64, path string) error
}
