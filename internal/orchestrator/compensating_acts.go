package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/onvifscout/scout-release/internal/repository"
	"go.uber.org/zap"
)

// CompensatingActions provides idempotent rollback operations for release workflow steps
type CompensatingActions struct {
	gitRepo    repository.GitRepository
	githubRepo repository.GithubRepository
	logger     *zap.Logger
}

// NewCompensatingActions creates a new compensating actions handler
func NewCompensatingActions(
	gitRepo repository.GitRepository,
	githubRepo repository.GithubRepository,
	logger *zap.Logger,
) *CompensatingActions {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CompensatingActions{
		gitRepo:    gitRepo,
		githubRepo: githubRepo,
		logger:     logger,
	}
}

// RestoreFiles idempotently restores modified files to their committed state
func (ca *CompensatingActions) RestoreFiles(ctx context.Context, rollbackData map[string]any) error {
	for _, file := range stringSlice(rollbackData["modified_files"]) {
		if !ca.fileHasChanges(ctx, file) {
			continue
		}
		if err := ca.gitRepo.RestoreFile(ctx, file); err != nil && !os.IsNotExist(err) {
			ca.logger.Warn("failed to restore file", zap.String("file", file), zap.Error(err))
		}
	}
	return nil
}

// ResetCommit idempotently undoes the release commit
func (ca *CompensatingActions) ResetCommit(ctx context.Context, rollbackData map[string]any) error {
	commitSHA := stringValue(rollbackData["commit_sha"])
	previous := stringValue(rollbackData["previous_head"])
	if commitSHA == "" || previous == "" {
		return nil
	}
	currentHead, err := ca.gitRepo.GetHeadCommit(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current HEAD: %w", err)
	}
	if !strings.HasPrefix(currentHead, commitSHA) {
		ca.logger.Info("commit already reset", zap.String("commit", commitSHA))
		return nil
	}
	if err := ca.gitRepo.ResetHard(ctx, previous); err != nil {
		return fmt.Errorf("failed to reset commit %s: %w", commitSHA, err)
	}
	return nil
}

// DeleteTag idempotently removes the local release tag
func (ca *CompensatingActions) DeleteTag(ctx context.Context, rollbackData map[string]any) error {
	tag := stringValue(rollbackData["tag"])
	if tag == "" || !boolValue(rollbackData["created"]) {
		return nil
	}
	exists, err := ca.gitRepo.TagExists(ctx, tag)
	if err != nil {
		return fmt.Errorf("failed to check tag %s: %w", tag, err)
	}
	if !exists {
		return nil
	}
	if err := ca.gitRepo.DeleteTag(ctx, tag); err != nil {
		return fmt.Errorf("failed to delete tag %s: %w", tag, err)
	}
	return nil
}

// DeleteRemoteTag removes the pushed release tag. The pushed branch commit
// is left in place; rewriting the remote branch is out of reach for a rollback.
func (ca *CompensatingActions) DeleteRemoteTag(ctx context.Context, rollbackData map[string]any) error {
	tag := stringValue(rollbackData["tag"])
	if tag == "" || !boolValue(rollbackData["pushed"]) {
		return nil
	}
	if err := ca.gitRepo.DeleteRemoteTag(ctx, tag); err != nil {
		if strings.Contains(err.Error(), "not found") {
			return nil
		}
		return fmt.Errorf("failed to delete remote tag %s: %w", tag, err)
	}
	if branch := stringValue(rollbackData["branch"]); branch != "" {
		ca.logger.Warn("release commit remains on remote branch", zap.String("branch", branch))
	}
	return nil
}

// DeleteGithubRelease idempotently deletes the GitHub release
func (ca *CompensatingActions) DeleteGithubRelease(ctx context.Context, rollbackData map[string]any) error {
	id := int64Value(rollbackData["release_id"])
	if id == 0 {
		tag := stringValue(rollbackData["tag"])
		if tag == "" {
			return nil
		}
		info, err := ca.githubRepo.GetReleaseByTag(ctx, tag)
		if err != nil {
			if errors.Is(err, repository.ErrReleaseNotFound) {
				return nil
			}
			return fmt.Errorf("failed to look up release %s: %w", tag, err)
		}
		id = info.ID
	}
	if err := ca.githubRepo.DeleteRelease(ctx, id); err != nil {
		return fmt.Errorf("failed to delete release %d: %w", id, err)
	}
	return nil
}

// NoOp is a no-operation compensating action for operations that don't need rollback
func (ca *CompensatingActions) NoOp(_ context.Context, _ map[string]any) error {
	return nil
}

func (ca *CompensatingActions) fileHasChanges(ctx context.Context, file string) bool {
	status, err := ca.gitRepo.GetFileStatus(ctx, file)
	if err != nil {
		return false
	}
	return status != "clean"
}

// Rollback data round-trips through JSON, so values may come back as
// float64 or []any.

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

func boolValue(v any) bool {
	b, _ := v.(bool)
	return b
}

func int64Value(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func stringSlice(v any) []string {
	switch files := v.(type) {
	case []string:
		return files
	case []any:
		out := make([]string, 0, len(files))
		for _, f := range files {
			if s, ok := f.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
