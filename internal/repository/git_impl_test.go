package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func setupTestRepo(t *testing.T) (string, *git.Repository) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	commitFile(t, repo, dir, "test.txt", "test content", "Initial commit", baseTime)
	return dir, repo
}

func commitFile(t *testing.T, repo *git.Repository, dir, name, content, msg string, when time.Time) {
	t.Helper()
	wt, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	_, err = wt.Add(name)
	require.NoError(t, err)
	_, err = wt.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{Name: "Test User", Email: "test@example.com", When: when},
	})
	require.NoError(t, err)
}

// commitWithParents commits name with explicit parents, for merge histories.
func commitWithParents(t *testing.T, repo *git.Repository, dir, name, msg string, parents ...plumbing.Hash) plumbing.Hash {
	t.Helper()
	wt, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(msg), 0o644))
	_, err = wt.Add(name)
	require.NoError(t, err)
	hash, err := wt.Commit(msg, &git.CommitOptions{
		Author:  &object.Signature{Name: "Test User", Email: "test@example.com", When: baseTime},
		Parents: parents,
	})
	require.NoError(t, err)
	return hash
}

func tagHead(t *testing.T, repo *git.Repository, tag string) {
	t.Helper()
	head, err := repo.Head()
	require.NoError(t, err)
	_, err = repo.CreateTag(tag, head.Hash(), nil)
	require.NoError(t, err)
}

func openTestRepo(t *testing.T, dir string) *gitRepository {
	t.Helper()
	r, err := NewGitRepository(dir, "", nil)
	require.NoError(t, err)
	return r.(*gitRepository)
}

func TestNewGitRepository(t *testing.T) {
	t.Run("Should open an existing repository", func(t *testing.T) {
		dir, _ := setupTestRepo(t)
		gitRepo, err := NewGitRepository(dir, "", nil)
		assert.NoError(t, err)
		assert.NotNil(t, gitRepo)
	})
	t.Run("Should detect the repository from a subdirectory", func(t *testing.T) {
		dir, _ := setupTestRepo(t)
		sub := filepath.Join(dir, "onvifscout")
		require.NoError(t, os.MkdirAll(sub, 0o755))
		_, err := NewGitRepository(sub, "", nil)
		assert.NoError(t, err)
	})
	t.Run("Should return error for non-git directory", func(t *testing.T) {
		gitRepo, err := NewGitRepository(t.TempDir(), "", nil)
		assert.Error(t, err)
		assert.Nil(t, gitRepo)
	})
}

func TestGitRepository_LatestTag(t *testing.T) {
	ctx := context.Background()
	t.Run("Should return the most recent version tag", func(t *testing.T) {
		dir, repo := setupTestRepo(t)
		tagHead(t, repo, "v1.0.0")
		commitFile(t, repo, dir, "a.txt", "a", "feat: a", baseTime.Add(time.Hour))
		tagHead(t, repo, "v1.1.0")
		tag, err := openTestRepo(t, dir).LatestTag(ctx)
		require.NoError(t, err)
		assert.Equal(t, "v1.1.0", tag)
	})
	t.Run("Should prefer the higher version on the same commit", func(t *testing.T) {
		dir, repo := setupTestRepo(t)
		tagHead(t, repo, "v1.1.0-rc.1")
		tagHead(t, repo, "v1.1.0")
		tag, err := openTestRepo(t, dir).LatestTag(ctx)
		require.NoError(t, err)
		assert.Equal(t, "v1.1.0", tag)
	})
	t.Run("Should ignore non-version tags", func(t *testing.T) {
		dir, repo := setupTestRepo(t)
		tagHead(t, repo, "v1.0.0")
		commitFile(t, repo, dir, "a.txt", "a", "chore: a", baseTime.Add(time.Hour))
		tagHead(t, repo, "nightly")
		tag, err := openTestRepo(t, dir).LatestTag(ctx)
		require.NoError(t, err)
		assert.Equal(t, "v1.0.0", tag)
	})
	t.Run("Should return empty string when no tags exist", func(t *testing.T) {
		dir, _ := setupTestRepo(t)
		tag, err := openTestRepo(t, dir).LatestTag(ctx)
		assert.NoError(t, err)
		assert.Equal(t, "", tag)
	})
}

func TestGitRepository_Tags(t *testing.T) {
	ctx := context.Background()
	t.Run("Should create an annotated tag", func(t *testing.T) {
		dir, repo := setupTestRepo(t)
		gitRepo := openTestRepo(t, dir)
		require.NoError(t, gitRepo.CreateTag(ctx, "v1.0.0", "Release v1.0.0"))
		ref, err := repo.Tag("v1.0.0")
		require.NoError(t, err)
		tagObj, err := repo.TagObject(ref.Hash())
		require.NoError(t, err)
		assert.Contains(t, tagObj.Message, "Release v1.0.0")
		assert.Equal(t, defaultBotName, tagObj.Tagger.Name)
	})
	t.Run("Should return error for duplicate tag", func(t *testing.T) {
		dir, _ := setupTestRepo(t)
		gitRepo := openTestRepo(t, dir)
		require.NoError(t, gitRepo.CreateTag(ctx, "v1.0.0", "Release v1.0.0"))
		assert.Error(t, gitRepo.CreateTag(ctx, "v1.0.0", "Release v1.0.0"))
	})
	t.Run("Should report and delete tags", func(t *testing.T) {
		dir, repo := setupTestRepo(t)
		tagHead(t, repo, "v1.0.0")
		gitRepo := openTestRepo(t, dir)
		exists, err := gitRepo.TagExists(ctx, "v1.0.0")
		require.NoError(t, err)
		assert.True(t, exists)
		require.NoError(t, gitRepo.DeleteTag(ctx, "v1.0.0"))
		exists, err = gitRepo.TagExists(ctx, "v1.0.0")
		require.NoError(t, err)
		assert.False(t, exists)
		assert.NoError(t, gitRepo.DeleteTag(ctx, "v1.0.0"))
	})
}

func TestGitRepository_CommitsSinceTag(t *testing.T) {
	ctx := context.Background()
	t.Run("Should count and list commits since tag", func(t *testing.T) {
		dir, repo := setupTestRepo(t)
		tagHead(t, repo, "v1.0.0")
		commitFile(t, repo, dir, "a.txt", "a", "feat(scan): add subnet option", baseTime.Add(time.Minute))
		commitFile(t, repo, dir, "b.txt", "b", "fix: handle timeouts", baseTime.Add(2*time.Minute))
		gitRepo := openTestRepo(t, dir)
		count, err := gitRepo.CommitsSinceTag(ctx, "v1.0.0")
		require.NoError(t, err)
		assert.Equal(t, 2, count)
		commits, err := gitRepo.CommitMessagesSinceTag(ctx, "v1.0.0")
		require.NoError(t, err)
		require.Len(t, commits, 2)
		assert.Equal(t, "fix: handle timeouts", commits[0].Message)
		assert.Equal(t, "feat(scan): add subnet option", commits[1].Message)
		assert.Len(t, commits[0].Hash, 40)
	})
	t.Run("Should exclude commits already behind the tag in a merge history", func(t *testing.T) {
		// Arrange
		dir, repo := setupTestRepo(t)
		head, err := repo.Head()
		require.NoError(t, err)
		root := head.Hash()
		side := commitWithParents(t, repo, dir, "side.txt", "feat: side work", root)
		released := commitWithParents(t, repo, dir, "main.txt", "fix: main work", root)
		tagHead(t, repo, "v1.0.0")
		commitWithParents(t, repo, dir, "merge.txt", "Merge branch 'side'", released, side)
		commitFile(t, repo, dir, "next.txt", "n", "feat: after release", baseTime.Add(time.Hour))
		gitRepo := openTestRepo(t, dir)

		// Act
		count, err := gitRepo.CommitsSinceTag(ctx, "v1.0.0")
		require.NoError(t, err)
		commits, err := gitRepo.CommitMessagesSinceTag(ctx, "v1.0.0")
		require.NoError(t, err)

		// Assert
		assert.Equal(t, 3, count)
		messages := make([]string, 0, len(commits))
		for _, c := range commits {
			messages = append(messages, c.Message)
		}
		assert.ElementsMatch(t, []string{"feat: after release", "Merge branch 'side'", "feat: side work"}, messages)
	})
	t.Run("Should list the full history without a tag", func(t *testing.T) {
		dir, _ := setupTestRepo(t)
		commits, err := openTestRepo(t, dir).CommitMessagesSinceTag(ctx, "")
		require.NoError(t, err)
		assert.Len(t, commits, 1)
	})
	t.Run("Should return error for non-existent tag", func(t *testing.T) {
		dir, _ := setupTestRepo(t)
		count, err := openTestRepo(t, dir).CommitsSinceTag(ctx, "v999.0.0")
		assert.Error(t, err)
		assert.Equal(t, 0, count)
	})
}

func TestGitRepository_CommitAndRestore(t *testing.T) {
	ctx := context.Background()
	t.Run("Should stage and commit with the configured user", func(t *testing.T) {
		dir, repo := setupTestRepo(t)
		gitRepo := openTestRepo(t, dir)
		before, err := gitRepo.GetHeadCommit(ctx)
		require.NoError(t, err)
		require.NoError(t, gitRepo.ConfigureUser(ctx, "Release Bot", "bot@example.com"))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "test.txt"), []byte("changed"), 0o644))
		status, err := gitRepo.GetFileStatus(ctx, "test.txt")
		require.NoError(t, err)
		assert.Equal(t, "modified", status)
		require.NoError(t, gitRepo.AddFiles(ctx, "test.txt"))
		require.NoError(t, gitRepo.Commit(ctx, "chore(release): v1.0.0"))
		after, err := gitRepo.GetHeadCommit(ctx)
		require.NoError(t, err)
		assert.NotEqual(t, before, after)
		head, err := repo.Head()
		require.NoError(t, err)
		commit, err := repo.CommitObject(head.Hash())
		require.NoError(t, err)
		assert.Equal(t, "Release Bot", commit.Author.Name)
		status, err = gitRepo.GetFileStatus(ctx, "test.txt")
		require.NoError(t, err)
		assert.Equal(t, "clean", status)
	})
	t.Run("Should ignore globs without matches", func(t *testing.T) {
		dir, _ := setupTestRepo(t)
		assert.NoError(t, openTestRepo(t, dir).AddFiles(ctx, "missing/*.py"))
	})
	t.Run("Should restore modified files and remove new ones", func(t *testing.T) {
		dir, _ := setupTestRepo(t)
		gitRepo := openTestRepo(t, dir)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "test.txt"), []byte("changed"), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "CHANGELOG.md"), []byte("# CHANGELOG"), 0o644))
		require.NoError(t, gitRepo.RestoreFile(ctx, "test.txt"))
		require.NoError(t, gitRepo.RestoreFile(ctx, "CHANGELOG.md"))
		data, err := os.ReadFile(filepath.Join(dir, "test.txt"))
		require.NoError(t, err)
		assert.Equal(t, "test content", string(data))
		_, err = os.Stat(filepath.Join(dir, "CHANGELOG.md"))
		assert.True(t, os.IsNotExist(err))
	})
	t.Run("Should reset hard to a previous commit", func(t *testing.T) {
		dir, repo := setupTestRepo(t)
		gitRepo := openTestRepo(t, dir)
		first, err := gitRepo.GetHeadCommit(ctx)
		require.NoError(t, err)
		commitFile(t, repo, dir, "a.txt", "a", "feat: a", baseTime.Add(time.Minute))
		require.NoError(t, gitRepo.ResetHard(ctx, first))
		head, err := gitRepo.GetHeadCommit(ctx)
		require.NoError(t, err)
		assert.Equal(t, first, head)
	})
}

func TestGitRepository_Branches(t *testing.T) {
	ctx := context.Background()
	t.Run("Should report the current branch", func(t *testing.T) {
		dir, _ := setupTestRepo(t)
		branch, err := openTestRepo(t, dir).GetCurrentBranch(ctx)
		require.NoError(t, err)
		assert.Equal(t, "master", branch)
	})
	t.Run("Should fail to push without a remote", func(t *testing.T) {
		dir, _ := setupTestRepo(t)
		gitRepo := openTestRepo(t, dir)
		assert.Error(t, gitRepo.PushBranch(ctx, "master"))
		assert.Error(t, gitRepo.PushTag(ctx, "v1.0.0"))
	})
	t.Run("Should authenticate pushes with the token", func(t *testing.T) {
		gitRepo := &gitRepository{token: "ghp_token"}
		auth := gitRepo.getAuth()
		require.NotNil(t, auth)
		assert.Equal(t, "x-access-token", auth.Username)
		assert.Nil(t, (&gitRepository{}).getAuth())
	})
}
