package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/onvifscout/scout-release/internal/domain"
	"go.uber.org/zap"
)

const (
	defaultRemoteName  = "origin"
	defaultBotName     = "github-actions[bot]"
	defaultBotEmail    = "41898282+github-actions[bot]@users.noreply.github.com"
	fileStatusClean    = "clean"
	fileStatusModified = "modified"
)

// gitRepository is the go-git implementation of GitRepository.
type gitRepository struct {
	repo   *git.Repository
	token  string
	logger *zap.Logger
}

// NewGitRepository opens the repository containing path. token authenticates
// pushes over https; empty means anonymous.
func NewGitRepository(path, token string, logger *zap.Logger) (GitRepository, error) {
	if path == "" {
		path = "."
	}
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open git repository: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &gitRepository{repo: repo, token: strings.TrimSpace(token), logger: logger}, nil
}

func (r *gitRepository) log() *zap.Logger {
	if r.logger == nil {
		return zap.NewNop()
	}
	return r.logger
}

// getAuth returns basic auth for GitHub token pushes.
func (r *gitRepository) getAuth() *http.BasicAuth {
	token := r.token
	if token == "" {
		return nil
	}
	return &http.BasicAuth{
		Username: "x-access-token",
		Password: token,
	}
}

// fetchTags refreshes local tags from origin, ignoring failures.
func (r *gitRepository) fetchTags(ctx context.Context) {
	remote, err := r.repo.Remote(defaultRemoteName)
	if err != nil {
		return
	}
	err = remote.FetchContext(ctx, &git.FetchOptions{
		RefSpecs: []config.RefSpec{"+refs/tags/*:refs/tags/*"},
		Auth:     r.getAuth(),
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		r.log().Debug("tag fetch failed, using local tags", zap.Error(err))
	}
}

// LatestTag returns the most recent semver tag by commit time, highest
// version first on ties. Non-version tags are ignored.
func (r *gitRepository) LatestTag(ctx context.Context) (string, error) {
	r.fetchTags(ctx)
	tagRefs, err := r.repo.Tags()
	if err != nil {
		return "", fmt.Errorf("failed to get tags: %w", err)
	}
	var (
		latestTag        string
		latestVersion    *semver.Version
		latestCommitTime time.Time
	)
	if err := tagRefs.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name().Short()
		version, err := semver.NewVersion(name)
		if err != nil {
			return nil
		}
		hash, err := r.resolveTagCommit(ref)
		if err != nil {
			return nil
		}
		commit, err := r.repo.CommitObject(hash)
		if err != nil {
			return nil
		}
		when := commit.Committer.When
		switch {
		case latestTag == "",
			when.After(latestCommitTime),
			when.Equal(latestCommitTime) && version.GreaterThan(latestVersion):
			latestTag = name
			latestVersion = version
			latestCommitTime = when
		}
		return nil
	}); err != nil {
		return "", fmt.Errorf("failed to iterate tags: %w", err)
	}
	return latestTag, nil
}

// fetchTagIfNeeded fetches a tag from remote if it doesn't exist locally.
func (r *gitRepository) fetchTagIfNeeded(ctx context.Context, tag string) (*plumbing.Reference, error) {
	tagRef, err := r.repo.Tag(tag)
	if err == nil {
		return tagRef, nil
	}
	r.fetchTags(ctx)
	tagRef, err = r.repo.Tag(tag)
	if err != nil {
		return nil, fmt.Errorf("failed to get tag %s: %w", tag, err)
	}
	return tagRef, nil
}

// resolveTagCommit resolves a lightweight or annotated tag to its commit.
func (r *gitRepository) resolveTagCommit(tagRef *plumbing.Reference) (plumbing.Hash, error) {
	if commit, err := r.repo.CommitObject(tagRef.Hash()); err == nil {
		return commit.Hash, nil
	}
	if tagObj, err := r.repo.TagObject(tagRef.Hash()); err == nil {
		if commit, err := r.repo.CommitObject(tagObj.Target); err == nil {
			return commit.Hash, nil
		}
	}
	return plumbing.Hash{}, fmt.Errorf("failed to resolve commit for tag")
}

// walkSince visits commits reachable from HEAD but not from stop. A zero
// stop hash walks the full history.
func (r *gitRepository) walkSince(stop plumbing.Hash, visit func(*object.Commit)) error {
	head, err := r.repo.Head()
	if err != nil {
		return fmt.Errorf("failed to get HEAD: %w", err)
	}
	released, err := r.ancestors(stop)
	if err != nil {
		return err
	}
	commits, err := r.repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return fmt.Errorf("failed to get commits: %w", err)
	}
	err = commits.ForEach(func(c *object.Commit) error {
		if !released[c.Hash] {
			visit(c)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to iterate commits: %w", err)
	}
	return nil
}

// ancestors returns stop and every commit reachable from it.
func (r *gitRepository) ancestors(stop plumbing.Hash) (map[plumbing.Hash]bool, error) {
	seen := map[plumbing.Hash]bool{}
	if stop.IsZero() {
		return seen, nil
	}
	commits, err := r.repo.Log(&git.LogOptions{From: stop})
	if err != nil {
		return nil, fmt.Errorf("failed to get commits for %s: %w", stop, err)
	}
	err = commits.ForEach(func(c *object.Commit) error {
		seen[c.Hash] = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate commits: %w", err)
	}
	return seen, nil
}

func (r *gitRepository) tagStop(ctx context.Context, tag string) (plumbing.Hash, error) {
	if tag == "" {
		return plumbing.ZeroHash, nil
	}
	tagRef, err := r.fetchTagIfNeeded(ctx, tag)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	hash, err := r.resolveTagCommit(tagRef)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to resolve tag %s: %w", tag, err)
	}
	return hash, nil
}

// CommitsSinceTag returns the number of commits since the given tag.
func (r *gitRepository) CommitsSinceTag(ctx context.Context, tag string) (int, error) {
	stop, err := r.tagStop(ctx, tag)
	if err != nil {
		return 0, err
	}
	var count int
	if err := r.walkSince(stop, func(*object.Commit) { count++ }); err != nil {
		return 0, err
	}
	return count, nil
}

// CommitMessagesSinceTag returns commits newest first since tag, or the whole
// history when tag is empty.
func (r *gitRepository) CommitMessagesSinceTag(ctx context.Context, tag string) ([]domain.Commit, error) {
	stop, err := r.tagStop(ctx, tag)
	if err != nil {
		return nil, err
	}
	var commits []domain.Commit
	err = r.walkSince(stop, func(c *object.Commit) {
		commits = append(commits, domain.Commit{Hash: c.Hash.String(), Message: c.Message})
	})
	if err != nil {
		return nil, err
	}
	return commits, nil
}

// TagExists checks if a tag exists locally.
func (r *gitRepository) TagExists(_ context.Context, tag string) (bool, error) {
	_, err := r.repo.Tag(tag)
	if errors.Is(err, git.ErrTagNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check tag %s: %w", tag, err)
	}
	return true, nil
}

// signature returns the configured user, or the Actions bot identity.
func (r *gitRepository) signature() *object.Signature {
	sig := &object.Signature{Name: defaultBotName, Email: defaultBotEmail, When: time.Now()}
	cfg, err := r.repo.Config()
	if err != nil {
		return sig
	}
	if cfg.User.Name != "" {
		sig.Name = cfg.User.Name
	}
	if cfg.User.Email != "" {
		sig.Email = cfg.User.Email
	}
	return sig
}

// CreateTag creates an annotated tag at HEAD.
func (r *gitRepository) CreateTag(_ context.Context, tag, msg string) error {
	head, err := r.repo.Head()
	if err != nil {
		return fmt.Errorf("failed to get HEAD: %w", err)
	}
	if msg == "" {
		msg = tag
	}
	_, err = r.repo.CreateTag(tag, head.Hash(), &git.CreateTagOptions{
		Message: msg,
		Tagger:  r.signature(),
	})
	if err != nil {
		return fmt.Errorf("failed to create tag %s: %w", tag, err)
	}
	return nil
}

// DeleteTag removes a local tag.
func (r *gitRepository) DeleteTag(_ context.Context, tag string) error {
	if err := r.repo.DeleteTag(tag); err != nil {
		if errors.Is(err, git.ErrTagNotFound) {
			return nil
		}
		return fmt.Errorf("failed to delete tag %s: %w", tag, err)
	}
	return nil
}

func (r *gitRepository) push(ctx context.Context, refSpec string) error {
	err := r.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: defaultRemoteName,
		RefSpecs:   []config.RefSpec{config.RefSpec(refSpec)},
		Auth:       r.getAuth(),
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return err
	}
	return nil
}

// PushTag pushes a tag to the remote.
func (r *gitRepository) PushTag(ctx context.Context, tag string) error {
	if err := r.push(ctx, fmt.Sprintf("refs/tags/%s:refs/tags/%s", tag, tag)); err != nil {
		return fmt.Errorf("failed to push tag %s: %w", tag, err)
	}
	return nil
}

// DeleteRemoteTag deletes a tag on the remote.
func (r *gitRepository) DeleteRemoteTag(ctx context.Context, tag string) error {
	if err := r.push(ctx, ":refs/tags/"+tag); err != nil {
		return fmt.Errorf("failed to delete remote tag %s: %w", tag, err)
	}
	return nil
}

// PushBranch pushes a branch to the remote.
func (r *gitRepository) PushBranch(ctx context.Context, name string) error {
	if err := r.push(ctx, fmt.Sprintf("refs/heads/%s:refs/heads/%s", name, name)); err != nil {
		return fmt.Errorf("failed to push branch %s: %w", name, err)
	}
	return nil
}

// GetCurrentBranch returns the name of the current branch.
func (r *gitRepository) GetCurrentBranch(_ context.Context) (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to get HEAD: %w", err)
	}
	if !head.Name().IsBranch() {
		return "", fmt.Errorf("HEAD is detached at %s", head.Hash().String()[:7])
	}
	return head.Name().Short(), nil
}

// CheckoutBranch switches to the specified branch.
func (r *gitRepository) CheckoutBranch(_ context.Context, name string) error {
	w, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	if err := w.Checkout(&git.CheckoutOptions{Branch: plumbing.NewBranchReferenceName(name)}); err != nil {
		return fmt.Errorf("failed to checkout %s: %w", name, err)
	}
	return nil
}

// ConfigureUser sets the repository-local git user.
func (r *gitRepository) ConfigureUser(_ context.Context, name, email string) error {
	cfg, err := r.repo.Config()
	if err != nil {
		return fmt.Errorf("failed to get config: %w", err)
	}
	cfg.User.Name = name
	cfg.User.Email = email
	return r.repo.Storer.SetConfig(cfg)
}

// AddFiles stages files matching the pattern.
func (r *gitRepository) AddFiles(_ context.Context, pattern string) error {
	w, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	err = w.AddGlob(pattern)
	if err != nil && !errors.Is(err, git.ErrGlobNoMatches) {
		return fmt.Errorf("failed to add files with pattern %s: %w", pattern, err)
	}
	return nil
}

// Commit creates a commit of the staged changes.
func (r *gitRepository) Commit(_ context.Context, message string) error {
	w, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	sig := r.signature()
	_, err = w.Commit(message, &git.CommitOptions{Author: sig, Committer: sig})
	if err != nil {
		return fmt.Errorf("failed to create commit: %w", err)
	}
	return nil
}

// GetHeadCommit returns the SHA of the current HEAD commit.
func (r *gitRepository) GetHeadCommit(_ context.Context) (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to get HEAD: %w", err)
	}
	return head.Hash().String(), nil
}

// ResetHard performs a hard reset to the specified reference.
func (r *gitRepository) ResetHard(_ context.Context, ref string) error {
	w, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	hash, err := r.repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return fmt.Errorf("failed to resolve revision %s: %w", ref, err)
	}
	if err := w.Reset(&git.ResetOptions{Commit: *hash, Mode: git.HardReset}); err != nil {
		return fmt.Errorf("failed to reset to %s: %w", ref, err)
	}
	return nil
}

// RestoreFile restores a file to its state in HEAD. A file absent from HEAD
// is removed from the worktree.
func (r *gitRepository) RestoreFile(_ context.Context, path string) error {
	head, err := r.repo.Head()
	if err != nil {
		return fmt.Errorf("failed to get HEAD: %w", err)
	}
	commit, err := r.repo.CommitObject(head.Hash())
	if err != nil {
		return fmt.Errorf("failed to get HEAD commit: %w", err)
	}
	w, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	file, err := commit.File(path)
	if errors.Is(err, object.ErrFileNotFound) {
		if rmErr := w.Filesystem.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			return fmt.Errorf("failed to remove %s: %w", path, rmErr)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get file %s from HEAD: %w", path, err)
	}
	contents, err := file.Contents()
	if err != nil {
		return fmt.Errorf("failed to get file contents: %w", err)
	}
	f, err := w.Filesystem.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to restore file %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.Write([]byte(contents)); err != nil {
		return fmt.Errorf("failed to restore file %s: %w", path, err)
	}
	return nil
}

// GetFileStatus returns "clean" or "modified" for path.
func (r *gitRepository) GetFileStatus(_ context.Context, path string) (string, error) {
	w, err := r.repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("failed to get worktree: %w", err)
	}
	status, err := w.Status()
	if err != nil {
		return "", fmt.Errorf("failed to get status: %w", err)
	}
	fileStatus, ok := status[path]
	if !ok || (fileStatus.Worktree == git.Unmodified && fileStatus.Staging == git.Unmodified) {
		return fileStatusClean, nil
	}
	return fileStatusModified, nil
}
