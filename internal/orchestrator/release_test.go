package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/onvifscout/scout-release/internal/domain"
	"github.com/onvifscout/scout-release/internal/repository"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// outputLine matches the lines the generated workflows copy into $GITHUB_OUTPUT.
var outputLine = regexp.MustCompile(`^([a-z_]+)=`)

type releaseFixture struct {
	git     *mockGitRepository
	github  *mockGithubRepository
	sr      *mockSemanticRelease
	builder *mockBuildService
	state   *MockStateRepository
	fs      afero.Fs
	out     *bytes.Buffer
	orch    *ReleaseOrchestrator
}

func newReleaseFixture(t *testing.T) *releaseFixture {
	t.Helper()
	f := &releaseFixture{
		git:     new(mockGitRepository),
		github:  new(mockGithubRepository),
		sr:      new(mockSemanticRelease),
		builder: new(mockBuildService),
		state:   new(MockStateRepository),
		fs:      afero.NewMemMapFs(),
		out:     &bytes.Buffer{},
	}
	require.NoError(t, afero.WriteFile(f.fs, "onvifscout/__version__.py", []byte("__version__ = \"1.0.0\"\n"), 0o644))
	require.NoError(t, afero.WriteFile(f.fs, "CHANGELOG.md", []byte("# CHANGELOG\n\n## v1.0.0 (2026-01-01)\n\n- first\n"), 0o644))
	f.orch = NewReleaseOrchestrator(f.git, f.github, f.fs, f.sr, f.builder, f.state, testSettings(), nil)
	f.orch.SetOutput(f.out)
	f.orch.now = func() time.Time { return time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC) }
	return f
}

// expectStart stubs the calls made before the first step.
func (f *releaseFixture) expectStart(head string) {
	f.git.On("GetCurrentBranch", mock.Anything).Return("main", nil)
	f.git.On("GetHeadCommit", mock.Anything).Return(head, nil).Once()
}

func (f *releaseFixture) expectChanges(latest string, commits int) {
	f.git.On("LatestTag", mock.Anything).Return(latest, nil)
	if latest != "" {
		f.git.On("CommitsSinceTag", mock.Anything, latest).Return(commits, nil)
	}
}

func (f *releaseFixture) expectCommits() {
	f.git.On("CommitMessagesSinceTag", mock.Anything, "v1.0.0").Return([]domain.Commit{
		{Hash: "1111111111", Message: "feat(discovery): probe WS-Discovery on all interfaces"},
		{Hash: "2222222222", Message: "fix: handle empty SOAP fault"},
	}, nil)
}

// expectWrites stubs the commit, tag and push of version.
func (f *releaseFixture) expectWrites(tag string) {
	f.git.On("GetHeadCommit", mock.Anything).Return("aaaaaaa", nil).Once()
	f.git.On("ConfigureUser", mock.Anything, botUserName, botUserEmail).Return(nil)
	f.git.On("AddFiles", mock.Anything, "onvifscout/__version__.py").Return(nil)
	f.git.On("AddFiles", mock.Anything, "CHANGELOG.md").Return(nil)
	f.git.On("Commit", mock.Anything, "chore(release): "+tag).Return(nil)
	f.git.On("GetHeadCommit", mock.Anything).Return("bbbbbbb", nil)
	f.git.On("TagExists", mock.Anything, tag).Return(false, nil).Once()
	f.git.On("CreateTag", mock.Anything, tag, "Release "+tag).Return(nil)
}

func (f *releaseFixture) expectBuild(t *testing.T, files ...string) {
	f.builder.On("Build", mock.Anything, "dist").Run(func(_ mock.Arguments) {
		for _, name := range files {
			require.NoError(t, afero.WriteFile(f.fs, "dist/"+name, []byte("dist"), 0o644))
		}
	}).Return(nil)
}

func TestReleaseOrchestrator_Execute(t *testing.T) {
	t.Run("Should release a new version end to end", func(t *testing.T) {
		// Arrange
		f := newReleaseFixture(t)
		f.expectStart("aaaaaaa")
		f.expectChanges("v1.0.0", 2)
		f.sr.On("NextVersion", mock.Anything, domain.PrereleaseNone).Return("1.1.0", nil)
		f.expectCommits()
		f.expectWrites("v1.1.0")
		f.git.On("PushBranch", mock.Anything, "main").Return(nil)
		f.git.On("PushTag", mock.Anything, "v1.1.0").Return(nil)
		f.expectBuild(t, "onvifscout-1.1.0-py3-none-any.whl", "onvifscout-1.1.0.tar.gz")
		f.github.On("GetReleaseByTag", mock.Anything, "v1.1.0").Return(nil, repository.ErrReleaseNotFound)
		f.github.On("CreateRelease", mock.Anything, mock.MatchedBy(func(in repository.ReleaseInput) bool {
			return in.TagName == "v1.1.0" && !in.Prerelease && strings.Contains(in.Body, "probe WS-Discovery")
		})).Return(&repository.ReleaseInfo{ID: 42, TagName: "v1.1.0", HTMLURL: "https://github.com/o/r/releases/v1.1.0"}, nil)
		f.github.On("UploadReleaseAsset", mock.Anything, int64(42), "dist/onvifscout-1.1.0-py3-none-any.whl").Return(nil)
		f.github.On("UploadReleaseAsset", mock.Anything, int64(42), "dist/onvifscout-1.1.0.tar.gz").Return(nil)

		// Act
		err := f.orch.Execute(context.Background(), ReleaseConfig{CIOutput: true})

		// Assert
		require.NoError(t, err)
		version, err := afero.ReadFile(f.fs, "onvifscout/__version__.py")
		require.NoError(t, err)
		assert.Equal(t, "__version__ = \"1.1.0\"\n", string(version))
		changelog, err := afero.ReadFile(f.fs, "CHANGELOG.md")
		require.NoError(t, err)
		assert.Contains(t, string(changelog), "## v1.1.0 (2026-10-17)")
		assert.Less(t, bytes.Index(changelog, []byte("## v1.1.0")), bytes.Index(changelog, []byte("## v1.0.0")))
		out := f.out.String()
		assert.Contains(t, out, "has_changes=true\n")
		assert.Contains(t, out, "version=1.1.0\n")
		assert.Contains(t, out, "tag=v1.1.0\n")
		assert.Contains(t, out, "released=true\n")
		f.git.AssertExpectations(t)
		f.github.AssertExpectations(t)
		f.builder.AssertExpectations(t)
	})

	t.Run("Should stop after the check when nothing changed", func(t *testing.T) {
		f := newReleaseFixture(t)
		f.expectStart("aaaaaaa")
		f.expectChanges("v1.0.0", 0)

		err := f.orch.Execute(context.Background(), ReleaseConfig{CIOutput: true})

		require.NoError(t, err)
		assert.Contains(t, f.out.String(), "has_changes=false\n")
		assert.Contains(t, f.out.String(), "released=false\n")
		assert.NotContains(t, f.out.String(), "version=")
		f.sr.AssertNotCalled(t, "NextVersion", mock.Anything, mock.Anything)
		f.builder.AssertNotCalled(t, "Build", mock.Anything, mock.Anything)
	})

	t.Run("Should compute a version without changes when forced", func(t *testing.T) {
		f := newReleaseFixture(t)
		f.expectStart("aaaaaaa")
		f.expectChanges("v1.0.0", 0)
		f.sr.On("NextVersion", mock.Anything, domain.PrereleaseNone).Return("", nil)

		err := f.orch.Execute(context.Background(), ReleaseConfig{Force: true, CIOutput: true})

		require.NoError(t, err)
		assert.Contains(t, f.out.String(), "released=false\n")
		f.sr.AssertExpectations(t)
	})

	t.Run("Should treat an already tagged version as nothing to release", func(t *testing.T) {
		f := newReleaseFixture(t)
		f.expectStart("aaaaaaa")
		f.expectChanges("v1.0.0", 3)
		f.sr.On("NextVersion", mock.Anything, domain.PrereleaseNone).Return("1.0.0", nil)

		err := f.orch.Execute(context.Background(), ReleaseConfig{})

		require.NoError(t, err)
		assert.Contains(t, f.out.String(), "No release needed")
		f.git.AssertNotCalled(t, "Commit", mock.Anything, mock.Anything)
	})

	t.Run("Should print the changelog and write nothing on a dry run", func(t *testing.T) {
		f := newReleaseFixture(t)
		f.expectStart("aaaaaaa")
		f.expectChanges("v1.0.0", 2)
		f.sr.On("NextVersion", mock.Anything, domain.PrereleaseBeta).Return("1.1.0-beta.1", nil)
		f.expectCommits()

		err := f.orch.Execute(context.Background(), ReleaseConfig{Prerelease: domain.PrereleaseBeta, DryRun: true})

		require.NoError(t, err)
		out := f.out.String()
		assert.Contains(t, out, "## v1.1.0-beta.1 (2026-10-17)")
		assert.Contains(t, out, "handle empty SOAP fault")
		assert.Contains(t, out, "pip install --pre onvifscout==1.1.0-beta.1")
		assert.Contains(t, out, "Dry run complete")
		version, err := afero.ReadFile(f.fs, "onvifscout/__version__.py")
		require.NoError(t, err)
		assert.Equal(t, "__version__ = \"1.0.0\"\n", string(version))
		changelog, err := afero.ReadFile(f.fs, "CHANGELOG.md")
		require.NoError(t, err)
		assert.NotContains(t, string(changelog), "1.1.0")
		f.git.AssertNotCalled(t, "Commit", mock.Anything, mock.Anything)
		f.git.AssertNotCalled(t, "CreateTag", mock.Anything, mock.Anything, mock.Anything)
		f.builder.AssertNotCalled(t, "Build", mock.Anything, mock.Anything)
		f.state.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("Should print the changelog and body on a dry run in CI mode", func(t *testing.T) {
		// Arrange
		f := newReleaseFixture(t)
		f.expectStart("aaaaaaa")
		f.expectChanges("v1.0.0", 2)
		f.sr.On("NextVersion", mock.Anything, domain.PrereleaseNone).Return("1.1.0", nil)
		f.expectCommits()

		// Act
		err := f.orch.Execute(context.Background(), ReleaseConfig{DryRun: true, CIOutput: true})

		// Assert
		require.NoError(t, err)
		out := f.out.String()
		assert.Contains(t, out, "## v1.1.0 (2026-10-17)")
		assert.Contains(t, out, "probe WS-Discovery on all interfaces")
		assert.Contains(t, out, "Release body:\n")
		assert.Contains(t, out, "pip install onvifscout==1.1.0")
		assert.Contains(t, out, "version=1.1.0\n")
		assert.Contains(t, out, "released=false\n")
		var keys []string
		for _, line := range strings.Split(out, "\n") {
			if m := outputLine.FindStringSubmatch(line); m != nil {
				keys = append(keys, m[1])
			}
		}
		assert.Equal(t, []string{"has_changes", "latest_tag", "version", "tag", "released"}, keys)
		f.git.AssertNotCalled(t, "Commit", mock.Anything, mock.Anything)
	})

	t.Run("Should flag prerelease channels on the GitHub release", func(t *testing.T) {
		f := newReleaseFixture(t)
		f.expectStart("aaaaaaa")
		f.expectChanges("v1.0.0", 1)
		f.sr.On("NextVersion", mock.Anything, domain.PrereleaseRC).Return("1.1.0-rc.1", nil)
		f.expectCommits()
		f.expectWrites("v1.1.0-rc.1")
		f.git.On("PushBranch", mock.Anything, "main").Return(nil)
		f.git.On("PushTag", mock.Anything, "v1.1.0-rc.1").Return(nil)
		f.expectBuild(t, "onvifscout-1.1.0rc1.tar.gz")
		f.github.On("GetReleaseByTag", mock.Anything, "v1.1.0-rc.1").Return(nil, repository.ErrReleaseNotFound)
		f.github.On("CreateRelease", mock.Anything, mock.MatchedBy(func(in repository.ReleaseInput) bool {
			return in.Prerelease && in.TagName == "v1.1.0-rc.1"
		})).Return(&repository.ReleaseInfo{ID: 7}, nil)
		f.github.On("UploadReleaseAsset", mock.Anything, int64(7), "dist/onvifscout-1.1.0rc1.tar.gz").Return(nil)

		err := f.orch.Execute(context.Background(), ReleaseConfig{Prerelease: domain.PrereleaseRC})

		require.NoError(t, err)
		f.github.AssertExpectations(t)
	})

	t.Run("Should keep the release local when push is skipped", func(t *testing.T) {
		f := newReleaseFixture(t)
		f.expectStart("aaaaaaa")
		f.expectChanges("v1.0.0", 1)
		f.sr.On("NextVersion", mock.Anything, domain.PrereleaseNone).Return("1.0.1", nil)
		f.expectCommits()
		f.expectWrites("v1.0.1")
		f.expectBuild(t, "onvifscout-1.0.1.tar.gz")

		err := f.orch.Execute(context.Background(), ReleaseConfig{SkipPush: true})

		require.NoError(t, err)
		f.git.AssertNotCalled(t, "PushBranch", mock.Anything, mock.Anything)
		f.github.AssertNotCalled(t, "CreateRelease", mock.Anything, mock.Anything)
	})

	t.Run("Should refuse to overwrite an existing tag", func(t *testing.T) {
		f := newReleaseFixture(t)
		f.expectStart("aaaaaaa")
		f.expectChanges("v1.0.0", 1)
		f.sr.On("NextVersion", mock.Anything, domain.PrereleaseNone).Return("1.0.1", nil)
		f.expectCommits()
		f.git.On("GetHeadCommit", mock.Anything).Return("aaaaaaa", nil).Once()
		f.git.On("ConfigureUser", mock.Anything, mock.Anything, mock.Anything).Return(nil)
		f.git.On("AddFiles", mock.Anything, mock.Anything).Return(nil)
		f.git.On("Commit", mock.Anything, mock.Anything).Return(nil)
		f.git.On("GetHeadCommit", mock.Anything).Return("bbbbbbb", nil)
		f.git.On("TagExists", mock.Anything, "v1.0.1").Return(true, nil)

		err := f.orch.Execute(context.Background(), ReleaseConfig{})

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrTagExists)
		f.git.AssertNotCalled(t, "CreateTag", mock.Anything, mock.Anything, mock.Anything)
		f.git.AssertNotCalled(t, "ResetHard", mock.Anything, mock.Anything)
	})
}

func TestReleaseOrchestrator_RollbackOnFailure(t *testing.T) {
	t.Run("Should undo tag, commit and files when the push fails", func(t *testing.T) {
		// Arrange
		f := newReleaseFixture(t)
		f.state.On("Save", mock.Anything, mock.Anything).Return(nil)
		f.expectStart("aaaaaaa")
		f.expectChanges("v1.0.0", 2)
		f.sr.On("NextVersion", mock.Anything, domain.PrereleaseNone).Return("1.1.0", nil)
		f.expectCommits()
		f.expectWrites("v1.1.0")
		f.git.On("PushBranch", mock.Anything, "main").Return(errors.New("remote rejected"))
		// Compensations
		f.git.On("TagExists", mock.Anything, "v1.1.0").Return(true, nil)
		f.git.On("DeleteTag", mock.Anything, "v1.1.0").Return(nil)
		f.git.On("ResetHard", mock.Anything, "aaaaaaa").Return(nil)
		f.git.On("GetFileStatus", mock.Anything, "CHANGELOG.md").Return("modified", nil)
		f.git.On("GetFileStatus", mock.Anything, "onvifscout/__version__.py").Return("clean", nil)
		f.git.On("RestoreFile", mock.Anything, "CHANGELOG.md").Return(nil)

		// Act
		err := f.orch.Execute(context.Background(), ReleaseConfig{EnableRollback: true, CIOutput: true})

		// Assert
		require.Error(t, err)
		assert.Contains(t, err.Error(), "remote rejected")
		assert.Contains(t, f.out.String(), "released=false\n")
		f.git.AssertCalled(t, "DeleteTag", mock.Anything, "v1.1.0")
		f.git.AssertCalled(t, "ResetHard", mock.Anything, "aaaaaaa")
		f.git.AssertCalled(t, "RestoreFile", mock.Anything, "CHANGELOG.md")
		f.git.AssertNotCalled(t, "RestoreFile", mock.Anything, "onvifscout/__version__.py")
		f.git.AssertNotCalled(t, "DeleteRemoteTag", mock.Anything, mock.Anything)
		f.builder.AssertNotCalled(t, "Build", mock.Anything, mock.Anything)
	})

	t.Run("Should leave changes in place when rollback is disabled", func(t *testing.T) {
		f := newReleaseFixture(t)
		f.expectStart("aaaaaaa")
		f.expectChanges("v1.0.0", 2)
		f.sr.On("NextVersion", mock.Anything, domain.PrereleaseNone).Return("1.1.0", nil)
		f.expectCommits()
		f.expectWrites("v1.1.0")
		f.git.On("PushBranch", mock.Anything, "main").Return(errors.New("remote rejected"))

		err := f.orch.Execute(context.Background(), ReleaseConfig{})

		require.Error(t, err)
		f.git.AssertNotCalled(t, "DeleteTag", mock.Anything, mock.Anything)
		f.git.AssertNotCalled(t, "ResetHard", mock.Anything, mock.Anything)
		f.state.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})
}

func TestReleaseOrchestrator_Rollback(t *testing.T) {
	t.Run("Should compensate the latest failed session", func(t *testing.T) {
		f := newReleaseFixture(t)
		state := domain.NewRollbackState("6f1c2a52-0d7e-4a57-9a3b-3c1f1b0f2e11")
		state.Status = domain.WorkflowStatusFailed
		state.Operations = []domain.OperationRecord{
			{ID: "a", Type: domain.OperationTypeCreateTag, Status: domain.OperationStatusCompleted,
				RollbackData: map[string]any{"tag": "v1.1.0", "created": true}},
			{ID: "b", Type: domain.OperationTypeCreateGithubRelease, Status: domain.OperationStatusCompleted,
				RollbackData: map[string]any{"release_id": float64(42), "tag": "v1.1.0"}},
		}
		f.state.On("LoadLatest", mock.Anything).Return(state, nil)
		f.state.On("Load", mock.Anything, state.SessionID).Return(state, nil)
		f.state.On("Save", mock.Anything, mock.Anything).Return(nil)
		f.git.On("TagExists", mock.Anything, "v1.1.0").Return(true, nil)
		f.git.On("DeleteTag", mock.Anything, "v1.1.0").Return(nil)
		f.github.On("DeleteRelease", mock.Anything, int64(42)).Return(nil)

		err := f.orch.Execute(context.Background(), ReleaseConfig{Rollback: true})

		require.NoError(t, err)
		assert.Equal(t, domain.WorkflowStatusRolledBack, state.Status)
		assert.Contains(t, f.out.String(), "Rollback of session")
		f.git.AssertExpectations(t)
		f.github.AssertExpectations(t)
	})
}
