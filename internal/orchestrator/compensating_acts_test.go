package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/onvifscout/scout-release/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newCompensator() (*CompensatingActions, *mockGitRepository, *mockGithubRepository) {
	git := new(mockGitRepository)
	gh := new(mockGithubRepository)
	return NewCompensatingActions(git, gh, nil), git, gh
}

func TestCompensatingActions_RestoreFiles(t *testing.T) {
	t.Run("Should restore only modified files", func(t *testing.T) {
		ca, git, _ := newCompensator()
		git.On("GetFileStatus", mock.Anything, "CHANGELOG.md").Return("modified", nil)
		git.On("GetFileStatus", mock.Anything, "onvifscout/__version__.py").Return("clean", nil)
		git.On("RestoreFile", mock.Anything, "CHANGELOG.md").Return(nil)

		// Rollback data read back from JSON holds []any
		err := ca.RestoreFiles(context.Background(), map[string]any{
			"modified_files": []any{"CHANGELOG.md", "onvifscout/__version__.py"},
		})

		require.NoError(t, err)
		git.AssertExpectations(t)
		git.AssertNumberOfCalls(t, "RestoreFile", 1)
	})
}

func TestCompensatingActions_ResetCommit(t *testing.T) {
	t.Run("Should reset when HEAD is the release commit", func(t *testing.T) {
		ca, git, _ := newCompensator()
		git.On("GetHeadCommit", mock.Anything).Return("bbbbbbb1234", nil)
		git.On("ResetHard", mock.Anything, "aaaaaaa").Return(nil)

		err := ca.ResetCommit(context.Background(), map[string]any{"commit_sha": "bbbbbbb", "previous_head": "aaaaaaa"})

		require.NoError(t, err)
		git.AssertExpectations(t)
	})

	t.Run("Should leave HEAD alone once it moved on", func(t *testing.T) {
		ca, git, _ := newCompensator()
		git.On("GetHeadCommit", mock.Anything).Return("ccccccc", nil)

		err := ca.ResetCommit(context.Background(), map[string]any{"commit_sha": "bbbbbbb", "previous_head": "aaaaaaa"})

		require.NoError(t, err)
		git.AssertNotCalled(t, "ResetHard", mock.Anything, mock.Anything)
	})
}

func TestCompensatingActions_DeleteTag(t *testing.T) {
	t.Run("Should skip tags it did not create", func(t *testing.T) {
		ca, git, _ := newCompensator()

		err := ca.DeleteTag(context.Background(), map[string]any{"tag": "v1.0.0", "created": false})

		require.NoError(t, err)
		git.AssertNotCalled(t, "TagExists", mock.Anything, mock.Anything)
	})

	t.Run("Should be a no-op when the tag is already gone", func(t *testing.T) {
		ca, git, _ := newCompensator()
		git.On("TagExists", mock.Anything, "v1.0.0").Return(false, nil)

		err := ca.DeleteTag(context.Background(), map[string]any{"tag": "v1.0.0", "created": true})

		require.NoError(t, err)
		git.AssertNotCalled(t, "DeleteTag", mock.Anything, mock.Anything)
	})
}

func TestCompensatingActions_DeleteRemoteTag(t *testing.T) {
	t.Run("Should tolerate a tag missing on the remote", func(t *testing.T) {
		ca, git, _ := newCompensator()
		git.On("DeleteRemoteTag", mock.Anything, "v1.0.0").Return(errors.New("remote ref not found"))

		err := ca.DeleteRemoteTag(context.Background(), map[string]any{"tag": "v1.0.0", "pushed": true, "branch": "main"})

		require.NoError(t, err)
	})

	t.Run("Should report other remote errors", func(t *testing.T) {
		ca, git, _ := newCompensator()
		git.On("DeleteRemoteTag", mock.Anything, "v1.0.0").Return(errors.New("authentication required"))

		err := ca.DeleteRemoteTag(context.Background(), map[string]any{"tag": "v1.0.0", "pushed": true})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "authentication required")
	})
}

func TestCompensatingActions_DeleteGithubRelease(t *testing.T) {
	t.Run("Should delete by id", func(t *testing.T) {
		ca, _, gh := newCompensator()
		gh.On("DeleteRelease", mock.Anything, int64(99)).Return(nil)

		err := ca.DeleteGithubRelease(context.Background(), map[string]any{"release_id": float64(99)})

		require.NoError(t, err)
		gh.AssertExpectations(t)
	})

	t.Run("Should look the release up by tag", func(t *testing.T) {
		ca, _, gh := newCompensator()
		gh.On("GetReleaseByTag", mock.Anything, "v1.0.0").Return(&repository.ReleaseInfo{ID: 5}, nil)
		gh.On("DeleteRelease", mock.Anything, int64(5)).Return(nil)

		err := ca.DeleteGithubRelease(context.Background(), map[string]any{"tag": "v1.0.0"})

		require.NoError(t, err)
		gh.AssertExpectations(t)
	})

	t.Run("Should succeed when no release exists", func(t *testing.T) {
		ca, _, gh := newCompensator()
		gh.On("GetReleaseByTag", mock.Anything, "v1.0.0").Return(nil, repository.ErrReleaseNotFound)

		err := ca.DeleteGithubRelease(context.Background(), map[string]any{"tag": "v1.0.0"})

		require.NoError(t, err)
		gh.AssertNotCalled(t, "DeleteRelease", mock.Anything, mock.Anything)
	})
}
