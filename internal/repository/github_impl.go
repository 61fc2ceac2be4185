package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/go-github/v74/github"
	"github.com/onvifscout/scout-release/internal/config"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// githubRepository is the go-github implementation of GithubRepository.
type githubRepository struct {
	client *github.Client
	owner  string
	repo   string
	logger *zap.Logger
}

// NewGithubRepository creates a GithubRepository after validating inputs.
func NewGithubRepository(token, owner, repo string, logger *zap.Logger) (GithubRepository, error) {
	if err := config.ValidateGitHubToken(token); err != nil {
		return nil, fmt.Errorf("invalid GitHub token: %w", err)
	}
	if err := config.ValidateGitHubOwnerRepo(owner, repo); err != nil {
		return nil, fmt.Errorf("invalid repository configuration: %w", err)
	}
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: strings.TrimSpace(token)},
	)
	tc := oauth2.NewClient(context.Background(), ts)
	return newGithubRepositoryWithClient(github.NewClient(tc), owner, repo, logger), nil
}

func newGithubRepositoryWithClient(client *github.Client, owner, repo string, logger *zap.Logger) *githubRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &githubRepository{client: client, owner: owner, repo: repo, logger: logger}
}

func toReleaseInfo(rel *github.RepositoryRelease) *ReleaseInfo {
	info := &ReleaseInfo{
		ID:         rel.GetID(),
		TagName:    rel.GetTagName(),
		HTMLURL:    rel.GetHTMLURL(),
		Prerelease: rel.GetPrerelease(),
	}
	for _, asset := range rel.Assets {
		info.Assets = append(info.Assets, asset.GetName())
	}
	return info
}

// CreateRelease creates a published GitHub release for an existing tag.
func (r *githubRepository) CreateRelease(ctx context.Context, in ReleaseInput) (*ReleaseInfo, error) {
	if in.TagName == "" {
		return nil, errors.New("release tag is required")
	}
	name := in.Name
	if name == "" {
		name = in.TagName
	}
	req := &github.RepositoryRelease{
		TagName:    github.Ptr(in.TagName),
		Name:       github.Ptr(name),
		Body:       github.Ptr(in.Body),
		Prerelease: github.Ptr(in.Prerelease),
		Draft:      github.Ptr(in.Draft),
	}
	if in.TargetCommitish != "" {
		req.TargetCommitish = github.Ptr(in.TargetCommitish)
	}
	rel, _, err := r.client.Repositories.CreateRelease(ctx, r.owner, r.repo, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create release %s: %w", in.TagName, err)
	}
	r.logger.Info("created github release",
		zap.String("tag", in.TagName),
		zap.Int64("id", rel.GetID()),
		zap.String("url", rel.GetHTMLURL()),
	)
	return toReleaseInfo(rel), nil
}

// GetReleaseByTag returns the release for tag or ErrReleaseNotFound.
func (r *githubRepository) GetReleaseByTag(ctx context.Context, tag string) (*ReleaseInfo, error) {
	rel, resp, err := r.client.Repositories.GetReleaseByTag(ctx, r.owner, r.repo, tag)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrReleaseNotFound, tag)
		}
		return nil, fmt.Errorf("failed to get release %s: %w", tag, err)
	}
	return toReleaseInfo(rel), nil
}

// DeleteRelease deletes a release; a missing release is not an error.
func (r *githubRepository) DeleteRelease(ctx context.Context, id int64) error {
	resp, err := r.client.Repositories.DeleteRelease(ctx, r.owner, r.repo, id)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil
		}
		return fmt.Errorf("failed to delete release %d: %w", id, err)
	}
	return nil
}

// UploadReleaseAsset attaches the file at path to the release.
func (r *githubRepository) UploadReleaseAsset(ctx context.Context, releaseID int64, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open asset %s: %w", path, err)
	}
	defer f.Close()
	name := filepath.Base(path)
	asset, _, err := r.client.Repositories.UploadReleaseAsset(ctx, r.owner, r.repo, releaseID, &github.UploadOptions{Name: name}, f)
	if err != nil {
		return fmt.Errorf("failed to upload asset %s: %w", name, err)
	}
	r.logger.Debug("uploaded release asset", zap.String("name", asset.GetName()), zap.Int64("release_id", releaseID))
	return nil
}
