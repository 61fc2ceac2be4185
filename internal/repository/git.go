package repository

import (
	"context"

	"github.com/onvifscout/scout-release/internal/domain"
)

// GitRepository defines the git operations the release pipeline needs.
type GitRepository interface {
	// Tag inspection
	LatestTag(ctx context.Context) (string, error)
	CommitsSinceTag(ctx context.Context, tag string) (int, error)
	CommitMessagesSinceTag(ctx context.Context, tag string) ([]domain.Commit, error)
	TagExists(ctx context.Context, tag string) (bool, error)
	// Tag operations
	CreateTag(ctx context.Context, tag, msg string) error
	DeleteTag(ctx context.Context, tag string) error
	PushTag(ctx context.Context, tag string) error
	DeleteRemoteTag(ctx context.Context, tag string) error
	// Branch operations
	PushBranch(ctx context.Context, name string) error
	GetCurrentBranch(ctx context.Context) (string, error)
	CheckoutBranch(ctx context.Context, name string) error
	// Git configuration
	ConfigureUser(ctx context.Context, name, email string) error
	// Staging and commits
	AddFiles(ctx context.Context, pattern string) error
	Commit(ctx context.Context, message string) error
	GetHeadCommit(ctx context.Context) (string, error)
	// File operations
	ResetHard(ctx context.Context, ref string) error
	RestoreFile(ctx context.Context, path string) error
	GetFileStatus(ctx context.Context, path string) (string, error)
}
