package usecase

import (
	"context"

	"github.com/onvifscout/scout-release/internal/domain"
	"github.com/onvifscout/scout-release/internal/service"
	"github.com/stretchr/testify/mock"
)

// Mock for GitRepository
type mockGitRepository struct {
	mock.Mock
}

func (m *mockGitRepository) LatestTag(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *mockGitRepository) CommitsSinceTag(ctx context.Context, tag string) (int, error) {
	args := m.Called(ctx, tag)
	return args.Int(0), args.Error(1)
}

func (m *mockGitRepository) CommitMessagesSinceTag(ctx context.Context, tag string) ([]domain.Commit, error) {
	args := m.Called(ctx, tag)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Commit), args.Error(1)
}

func (m *mockGitRepository) TagExists(ctx context.Context, tag string) (bool, error) {
	args := m.Called(ctx, tag)
	return args.Bool(0), args.Error(1)
}

func (m *mockGitRepository) CreateTag(ctx context.Context, tag, msg string) error {
	return m.Called(ctx, tag, msg).Error(0)
}

func (m *mockGitRepository) DeleteTag(ctx context.Context, tag string) error {
	return m.Called(ctx, tag).Error(0)
}

func (m *mockGitRepository) PushTag(ctx context.Context, tag string) error {
	return m.Called(ctx, tag).Error(0)
}

func (m *mockGitRepository) DeleteRemoteTag(ctx context.Context, tag string) error {
	return m.Called(ctx, tag).Error(0)
}

func (m *mockGitRepository) PushBranch(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *mockGitRepository) GetCurrentBranch(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *mockGitRepository) CheckoutBranch(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *mockGitRepository) ConfigureUser(ctx context.Context, name, email string) error {
	return m.Called(ctx, name, email).Error(0)
}

func (m *mockGitRepository) AddFiles(ctx context.Context, pattern string) error {
	return m.Called(ctx, pattern).Error(0)
}

func (m *mockGitRepository) Commit(ctx context.Context, message string) error {
	return m.Called(ctx, message).Error(0)
}

func (m *mockGitRepository) GetHeadCommit(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *mockGitRepository) ResetHard(ctx context.Context, ref string) error {
	return m.Called(ctx, ref).Error(0)
}

func (m *mockGitRepository) RestoreFile(ctx context.Context, path string) error {
	return m.Called(ctx, path).Error(0)
}

func (m *mockGitRepository) GetFileStatus(ctx context.Context, path string) (string, error) {
	args := m.Called(ctx, path)
	return args.String(0), args.Error(1)
}

// Mock for SemanticReleaseService
type mockSemanticRelease struct {
	mock.Mock
}

func (m *mockSemanticRelease) NextVersion(ctx context.Context, channel domain.PrereleaseChannel) (string, error) {
	args := m.Called(ctx, channel)
	return args.String(0), args.Error(1)
}

func (m *mockSemanticRelease) Run(ctx context.Context, args ...string) (service.Result, error) {
	called := m.Called(ctx, args)
	return called.Get(0).(service.Result), called.Error(1)
}

func mustVersion(s string) *domain.Version {
	v, err := domain.NewVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}
