package orchestrator

import (
	"context"

	"github.com/onvifscout/scout-release/internal/domain"
	"github.com/onvifscout/scout-release/internal/repository"
	"github.com/onvifscout/scout-release/internal/service"
	"github.com/stretchr/testify/mock"
)

// Mock for GitRepository - implements every method of the interface
type mockGitRepository struct{ mock.Mock }

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
	if commits := args.Get(0); commits != nil {
		return commits.([]domain.Commit), args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockGitRepository) TagExists(ctx context.Context, tag string) (bool, error) {
	args := m.Called(ctx, tag)
	return args.Bool(0), args.Error(1)
}
func (m *mockGitRepository) CreateTag(ctx context.Context, tag, msg string) error {
	args := m.Called(ctx, tag, msg)
	return args.Error(0)
}
func (m *mockGitRepository) DeleteTag(ctx context.Context, tag string) error {
	args := m.Called(ctx, tag)
	return args.Error(0)
}
func (m *mockGitRepository) PushTag(ctx context.Context, tag string) error {
	args := m.Called(ctx, tag)
	return args.Error(0)
}
func (m *mockGitRepository) DeleteRemoteTag(ctx context.Context, tag string) error {
	args := m.Called(ctx, tag)
	return args.Error(0)
}
func (m *mockGitRepository) PushBranch(ctx context.Context, branch string) error {
	args := m.Called(ctx, branch)
	return args.Error(0)
}
func (m *mockGitRepository) GetCurrentBranch(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}
func (m *mockGitRepository) CheckoutBranch(ctx context.Context, branch string) error {
	args := m.Called(ctx, branch)
	return args.Error(0)
}
func (m *mockGitRepository) ConfigureUser(ctx context.Context, name, email string) error {
	args := m.Called(ctx, name, email)
	return args.Error(0)
}
func (m *mockGitRepository) AddFiles(ctx context.Context, pattern string) error {
	args := m.Called(ctx, pattern)
	return args.Error(0)
}
func (m *mockGitRepository) Commit(ctx context.Context, message string) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}
func (m *mockGitRepository) GetHeadCommit(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}
func (m *mockGitRepository) ResetHard(ctx context.Context, ref string) error {
	args := m.Called(ctx, ref)
	return args.Error(0)
}
func (m *mockGitRepository) RestoreFile(ctx context.Context, path string) error {
	args := m.Called(ctx, path)
	return args.Error(0)
}
func (m *mockGitRepository) GetFileStatus(ctx context.Context, path string) (string, error) {
	args := m.Called(ctx, path)
	return args.String(0), args.Error(1)
}

// Mock for GithubRepository
type mockGithubRepository struct{ mock.Mock }

func (m *mockGithubRepository) CreateRelease(
	ctx context.Context,
	in repository.ReleaseInput,
) (*repository.ReleaseInfo, error) {
	args := m.Called(ctx, in)
	if info := args.Get(0); info != nil {
		return info.(*repository.ReleaseInfo), args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockGithubRepository) GetReleaseByTag(ctx context.Context, tag string) (*repository.ReleaseInfo, error) {
	args := m.Called(ctx, tag)
	if info := args.Get(0); info != nil {
		return info.(*repository.ReleaseInfo), args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockGithubRepository) DeleteRelease(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
func (m *mockGithubRepository) UploadReleaseAsset(ctx context.Context, releaseID int64, path string) error {
	args := m.Called(ctx, releaseID, path)
	return args.Error(0)
}

type mockSemanticRelease struct{ mock.Mock }

func (m *mockSemanticRelease) NextVersion(ctx context.Context, channel domain.PrereleaseChannel) (string, error) {
	args := m.Called(ctx, channel)
	return args.String(0), args.Error(1)
}
func (m *mockSemanticRelease) Run(ctx context.Context, args ...string) (service.Result, error) {
	called := m.Called(ctx, args)
	return called.Get(0).(service.Result), called.Error(1)
}

type mockBuildService struct{ mock.Mock }

func (m *mockBuildService) Build(ctx context.Context, outDir string) error {
	args := m.Called(ctx, outDir)
	return args.Error(0)
}

type mockRuffService struct{ mock.Mock }

func (m *mockRuffService) Check(ctx context.Context, paths []string) (service.Result, error) {
	args := m.Called(ctx, paths)
	return args.Get(0).(service.Result), args.Error(1)
}
func (m *mockRuffService) FormatCheck(ctx context.Context, paths []string) (service.Result, error) {
	args := m.Called(ctx, paths)
	return args.Get(0).(service.Result), args.Error(1)
}

type mockTwineService struct{ mock.Mock }

func (m *mockTwineService) Check(ctx context.Context, files []string) error {
	args := m.Called(ctx, files)
	return args.Error(0)
}
func (m *mockTwineService) Upload(ctx context.Context, files []string, opts service.UploadOptions) error {
	args := m.Called(ctx, files, opts)
	return args.Error(0)
}

type mockPyPIClient struct{ mock.Mock }

func (m *mockPyPIClient) VersionExists(ctx context.Context, pkg, version string) (bool, error) {
	args := m.Called(ctx, pkg, version)
	return args.Bool(0), args.Error(1)
}

type mockReleaseRunner struct{ mock.Mock }

func (m *mockReleaseRunner) Execute(ctx context.Context, cfg ReleaseConfig) error {
	args := m.Called(ctx, cfg)
	return args.Error(0)
}

type mockLintRunner struct{ mock.Mock }

func (m *mockLintRunner) Execute(ctx context.Context, cfg LintConfig) (domain.LintReport, error) {
	args := m.Called(ctx, cfg)
	return args.Get(0).(domain.LintReport), args.Error(1)
}

type mockPublishRunner struct{ mock.Mock }

func (m *mockPublishRunner) Execute(ctx context.Context, cfg PublishConfig) error {
	args := m.Called(ctx, cfg)
	return args.Error(0)
}

func testSettings() Settings {
	return Settings{
		PackageName:   "onvifscout",
		VersionFile:   "onvifscout/__version__.py",
		ChangelogFile: "CHANGELOG.md",
		DistDir:       "dist",
		MainBranch:    "main",
		PypiToken:     "pypi-AgEIcHlwaS5vcmcCJGFiY2Q",
		Taxonomy:      domain.DefaultCommitTaxonomy(),
	}
}
