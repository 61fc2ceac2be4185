package repository

import (
	"context"
	"errors"
	"fmt"
)

var ErrGithubTokenRequired = errors.New("github token is required for GitHub operations")

type githubNoopRepository struct {
	owner string
	repo  string
}

// NewGithubNoopRepository returns a GithubRepository whose operations fail
// with ErrGithubTokenRequired.
func NewGithubNoopRepository(owner, repo string) GithubRepository {
	return &githubNoopRepository{owner: owner, repo: repo}
}

func (r *githubNoopRepository) CreateRelease(_ context.Context, _ ReleaseInput) (*ReleaseInfo, error) {
	return nil, r.operationError("create release")
}

func (r *githubNoopRepository) GetReleaseByTag(_ context.Context, _ string) (*ReleaseInfo, error) {
	return nil, r.operationError("get release")
}

func (r *githubNoopRepository) DeleteRelease(_ context.Context, _ int64) error {
	return r.operationError("delete release")
}

func (r *githubNoopRepository) UploadReleaseAsset(_ context.Context, _ int64, _ string) error {
	return r.operationError("upload release asset")
}

func (r *githubNoopRepository) operationError(action string) error {
	return fmt.Errorf("%w: unable to %s for %s/%s", ErrGithubTokenRequired, action, r.owner, r.repo)
}
