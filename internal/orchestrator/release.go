package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/onvifscout/scout-release/internal/domain"
	"github.com/onvifscout/scout-release/internal/repository"
	"github.com/onvifscout/scout-release/internal/service"
	"github.com/onvifscout/scout-release/internal/usecase"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// Step conditions of the release workflow.
const (
	whenVersionNeeded = "has_changes || force"
	whenWrite         = "releasable && !dry_run"
	whenPublish       = "releasable && !dry_run && !skip_push"
)

// ReleaseConfig contains configuration for the release workflow.
type ReleaseConfig struct {
	Prerelease domain.PrereleaseChannel
	DryRun     bool
	// Force computes a version even when no commits landed since the last tag.
	Force    bool
	CIOutput bool
	// SkipPush keeps the commit and tag local and skips the GitHub release.
	SkipPush       bool
	EnableRollback bool   // Persist state so a failed run can be rolled back
	Rollback       bool   // Roll back a failed session instead of releasing
	SessionID      string // Session to roll back; empty means the latest
}

// ReleaseOrchestrator orchestrates the release workflow: version, changelog,
// commit, tag, push, build and GitHub release.
type ReleaseOrchestrator struct {
	gitRepo         repository.GitRepository
	githubRepo      repository.GithubRepository
	fsRepo          repository.FileSystemRepository
	semanticRelease service.SemanticReleaseService
	builder         service.BuildService
	stateRepo       repository.StateRepository
	settings        Settings
	logger          *zap.Logger
	out             io.Writer
	now             func() time.Time
}

// NewReleaseOrchestrator creates a new release orchestrator.
func NewReleaseOrchestrator(
	gitRepo repository.GitRepository,
	githubRepo repository.GithubRepository,
	fsRepo repository.FileSystemRepository,
	semanticRelease service.SemanticReleaseService,
	builder service.BuildService,
	stateRepo repository.StateRepository,
	settings Settings,
	logger *zap.Logger,
) *ReleaseOrchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReleaseOrchestrator{
		gitRepo:         gitRepo,
		githubRepo:      githubRepo,
		fsRepo:          fsRepo,
		semanticRelease: semanticRelease,
		builder:         builder,
		stateRepo:       stateRepo,
		settings:        settings,
		logger:          logger,
		out:             os.Stdout,
		now:             time.Now,
	}
}

// SetOutput redirects status lines and CI outputs.
func (o *ReleaseOrchestrator) SetOutput(w io.Writer) {
	o.out = w
}

// releaseContext holds state shared between release steps
type releaseContext struct {
	hasChanges   bool
	latestTag    string
	version      *domain.Version
	section      string
	notes        string
	originalHead string
	branch       string
	artifacts    []domain.Artifact
	releaseURL   string
}

func (w *releaseContext) releasable() bool {
	return w.version != nil
}

// Execute runs the release workflow.
func (o *ReleaseOrchestrator) Execute(ctx context.Context, cfg ReleaseConfig) error {
	if cfg.Rollback {
		return o.performRollback(ctx, cfg.SessionID)
	}
	ctx, cancel := context.WithTimeout(ctx, ReleaseWorkflowTimeout)
	defer cancel()
	if cfg.Prerelease == "" {
		cfg.Prerelease = domain.PrereleaseNone
	}
	saga, wctx, err := o.initializeSaga(ctx, cfg)
	if err != nil {
		return err
	}
	compensator := NewCompensatingActions(o.gitRepo, o.githubRepo, o.logger)
	o.addCheckChangesStep(saga, cfg, wctx)
	o.addCalculateVersionStep(saga, cfg, wctx)
	o.addUpdateVersionFileStep(saga, compensator, wctx)
	o.addUpdateChangelogStep(saga, cfg, compensator, wctx)
	o.addCommitStep(saga, compensator, wctx)
	o.addCreateTagStep(saga, compensator, wctx)
	o.addPushStep(saga, compensator, wctx)
	o.addBuildStep(saga, compensator, wctx)
	o.addGithubReleaseStep(saga, cfg, compensator, wctx)

	execErr := saga.Execute(ctx)
	o.printCIOutput(cfg.CIOutput, "released=%t\n", execErr == nil && wctx.releasable() && !cfg.DryRun)
	o.printStatus(cfg.CIOutput, RenderSummary(saga.Results()))
	if execErr != nil {
		if cfg.EnableRollback && !cfg.DryRun {
			o.printStatus(cfg.CIOutput, fmt.Sprintf("Session %s; rerun with --rollback --session-id %s if cleanup is incomplete",
				saga.SessionID(), saga.SessionID()))
		}
		return fmt.Errorf("release workflow failed: %w", execErr)
	}
	switch {
	case !wctx.releasable():
		o.printStatus(cfg.CIOutput, "No release needed")
	case cfg.DryRun:
		o.printStatus(cfg.CIOutput, fmt.Sprintf("Dry run complete: release %s prepared, nothing written", wctx.version))
	default:
		o.printStatus(cfg.CIOutput, fmt.Sprintf("Released %s %s", wctx.version, wctx.releaseURL))
	}
	return nil
}

// initializeSaga creates the saga executor and records where the run started
func (o *ReleaseOrchestrator) initializeSaga(
	ctx context.Context,
	cfg ReleaseConfig,
) (*SagaExecutor, *releaseContext, error) {
	saga := NewSagaExecutor(o.stateRepo, cfg.EnableRollback && !cfg.DryRun, o.logger)
	wctx := &releaseContext{}
	branch, err := o.gitRepo.GetCurrentBranch(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get current branch: %w", err)
	}
	head, err := o.gitRepo.GetHeadCommit(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get HEAD commit: %w", err)
	}
	wctx.branch = branch
	wctx.originalHead = head
	saga.SetOriginalBranch(branch)
	saga.SetOriginalHead(head)
	saga.SetPrerelease(cfg.Prerelease)
	saga.SetConditionParams(func() map[string]any {
		return map[string]any{
			ParamDryRun:     cfg.DryRun,
			ParamPrerelease: cfg.Prerelease.IsPrerelease(),
			ParamChannel:    string(cfg.Prerelease),
			ParamForce:      cfg.Force,
			ParamHasChanges: wctx.hasChanges,
			ParamReleasable: wctx.releasable(),
			ParamSkipPush:   cfg.SkipPush,
		}
	})
	return saga, wctx, nil
}

func (o *ReleaseOrchestrator) addCheckChangesStep(saga *SagaExecutor, cfg ReleaseConfig, wctx *releaseContext) {
	saga.AddStep(SagaStep{
		Name: "Check Changes",
		Type: domain.OperationTypeCheckChanges,
		Execute: func(ctx context.Context) (map[string]any, error) {
			uc := &usecase.CheckChangesUseCase{GitRepo: o.gitRepo}
			var err error
			wctx.hasChanges, wctx.latestTag, err = uc.Execute(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to check changes: %w", err)
			}
			o.printCIOutput(cfg.CIOutput, "has_changes=%t\n", wctx.hasChanges)
			o.printCIOutput(cfg.CIOutput, "latest_tag=%s\n", wctx.latestTag)
			if !wctx.hasChanges && !cfg.Force {
				o.printStatus(cfg.CIOutput, "No changes detected since last release")
			}
			return map[string]any{
				"has_changes": wctx.hasChanges,
				"latest_tag":  wctx.latestTag,
			}, nil
		},
	})
}

func (o *ReleaseOrchestrator) addCalculateVersionStep(saga *SagaExecutor, cfg ReleaseConfig, wctx *releaseContext) {
	saga.AddStep(SagaStep{
		Name: "Calculate Version",
		Type: domain.OperationTypeCalculateVersion,
		When: whenVersionNeeded,
		Execute: func(ctx context.Context) (map[string]any, error) {
			uc := &usecase.CalculateVersionUseCase{GitRepo: o.gitRepo, SemanticRelease: o.semanticRelease}
			version, err := uc.Execute(ctx, cfg.Prerelease)
			if errors.Is(err, usecase.ErrNoRelease) {
				o.logger.Info("semantic-release found nothing to release", zap.Error(err))
				return map[string]any{"released": false}, nil
			}
			if err != nil {
				return nil, permanentIfExit(fmt.Errorf("failed to calculate version: %w", err))
			}
			if err := ValidateVersion(version.String()); err != nil {
				return nil, permanent(fmt.Errorf("invalid version: %w", err))
			}
			wctx.version = version
			saga.SetVersion(version.Plain())
			saga.SetTagName(version.TagName())
			o.printCIOutput(cfg.CIOutput, "version=%s\n", version.Plain())
			o.printCIOutput(cfg.CIOutput, "tag=%s\n", version.TagName())
			return map[string]any{"version": version.Plain()}, nil
		},
	})
}

func (o *ReleaseOrchestrator) addUpdateVersionFileStep(
	saga *SagaExecutor,
	compensator *CompensatingActions,
	wctx *releaseContext,
) {
	saga.AddStep(SagaStep{
		Name: "Update Version File",
		Type: domain.OperationTypeUpdateVersionFile,
		When: whenWrite,
		Execute: func(ctx context.Context) (map[string]any, error) {
			uc := &usecase.UpdateVersionFileUseCase{FS: o.fsRepo}
			if err := uc.Execute(ctx, o.settings.VersionFile, wctx.version); err != nil {
				return nil, fmt.Errorf("failed to update version file: %w", err)
			}
			return map[string]any{"modified_files": []string{o.settings.VersionFile}}, nil
		},
		Compensate: compensator.RestoreFiles,
	})
}

// addUpdateChangelogStep renders the section; on a dry run it is printed
// instead of written.
func (o *ReleaseOrchestrator) addUpdateChangelogStep(
	saga *SagaExecutor,
	cfg ReleaseConfig,
	compensator *CompensatingActions,
	wctx *releaseContext,
) {
	saga.AddStep(SagaStep{
		Name: "Update Changelog",
		Type: domain.OperationTypeUpdateChangelog,
		When: "releasable",
		Execute: func(ctx context.Context) (map[string]any, error) {
			gen := &usecase.GenerateChangelogUseCase{
				GitRepo:  o.gitRepo,
				Taxonomy: o.settings.Taxonomy,
				Now:      o.now,
			}
			_, section, err := gen.Execute(ctx, wctx.version)
			if err != nil {
				return nil, fmt.Errorf("failed to generate changelog: %w", err)
			}
			wctx.section = section
			if cfg.DryRun {
				notes, ok := usecase.ExtractNotes(section, wctx.version)
				if !ok {
					notes = usecase.DefaultReleaseNotes(wctx.version)
				}
				wctx.notes = notes
				body, err := (&usecase.PrepareReleaseBodyUseCase{PackageName: o.settings.PackageName}).Execute(ctx,
					&domain.Release{Version: wctx.version, Channel: cfg.Prerelease, Notes: notes, DryRun: true})
				if err != nil {
					return nil, fmt.Errorf("failed to prepare release body: %w", err)
				}
				// Printed in CI mode too; the workflow only keeps key=value lines.
				fmt.Fprintln(o.out, section)
				fmt.Fprintln(o.out, "Release body:\n"+body)
				return map[string]any{}, nil
			}
			prepend := &usecase.PrependChangelogUseCase{FS: o.fsRepo}
			written, err := prepend.Execute(ctx, o.settings.ChangelogFile, wctx.version, section)
			if err != nil {
				return nil, fmt.Errorf("failed to update changelog: %w", err)
			}
			if !written {
				o.logger.Info("changelog already has a section for this version",
					zap.String("version", wctx.version.Plain()))
			}
			return map[string]any{"modified_files": []string{o.settings.ChangelogFile}}, nil
		},
		Compensate: compensator.RestoreFiles,
	})
}

func (o *ReleaseOrchestrator) addCommitStep(
	saga *SagaExecutor,
	compensator *CompensatingActions,
	wctx *releaseContext,
) {
	saga.AddStep(SagaStep{
		Name: "Commit Release",
		Type: domain.OperationTypeCommitChanges,
		When: whenWrite,
		Execute: func(ctx context.Context) (map[string]any, error) {
			previous, err := o.gitRepo.GetHeadCommit(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to get HEAD commit: %w", err)
			}
			if previous != wctx.originalHead {
				// A retried attempt already committed
				return map[string]any{"commit_sha": previous, "previous_head": wctx.originalHead}, nil
			}
			if err := o.gitRepo.ConfigureUser(ctx, botUserName, botUserEmail); err != nil {
				return nil, fmt.Errorf("failed to configure git user: %w", err)
			}
			for _, path := range []string{o.settings.VersionFile, o.settings.ChangelogFile} {
				if err := o.gitRepo.AddFiles(ctx, path); err != nil {
					return nil, fmt.Errorf("failed to stage %s: %w", path, err)
				}
			}
			if err := o.gitRepo.Commit(ctx, releaseCommitPrefix+wctx.version.String()); err != nil {
				return nil, fmt.Errorf("failed to commit release: %w", err)
			}
			head, err := o.gitRepo.GetHeadCommit(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to get release commit: %w", err)
			}
			return map[string]any{"commit_sha": head, "previous_head": previous}, nil
		},
		Compensate: compensator.ResetCommit,
	})
}

func (o *ReleaseOrchestrator) addCreateTagStep(
	saga *SagaExecutor,
	compensator *CompensatingActions,
	wctx *releaseContext,
) {
	saga.AddStep(SagaStep{
		Name:    "Create Tag",
		Type:    domain.OperationTypeCreateTag,
		When:    whenWrite,
		NoRetry: true,
		Execute: func(ctx context.Context) (map[string]any, error) {
			tag := wctx.version.TagName()
			exists, err := o.gitRepo.TagExists(ctx, tag)
			if err != nil {
				return nil, fmt.Errorf("failed to check tag: %w", err)
			}
			if exists {
				return nil, fmt.Errorf("%w: %s", ErrTagExists, tag)
			}
			if err := o.gitRepo.CreateTag(ctx, tag, "Release "+tag); err != nil {
				return nil, fmt.Errorf("failed to create tag: %w", err)
			}
			return map[string]any{"tag": tag, "created": true}, nil
		},
		Compensate: compensator.DeleteTag,
	})
}

func (o *ReleaseOrchestrator) addPushStep(
	saga *SagaExecutor,
	compensator *CompensatingActions,
	wctx *releaseContext,
) {
	saga.AddStep(SagaStep{
		Name: "Push Release",
		Type: domain.OperationTypePushRelease,
		When: whenPublish,
		Execute: func(ctx context.Context) (map[string]any, error) {
			if err := ValidateBranchName(wctx.branch); err != nil {
				return nil, permanent(fmt.Errorf("cannot push: %w", err))
			}
			if wctx.branch != o.settings.MainBranch {
				o.logger.Warn("releasing from a branch other than the main branch",
					zap.String("branch", wctx.branch),
					zap.String("main_branch", o.settings.MainBranch))
			}
			if err := o.gitRepo.PushBranch(ctx, wctx.branch); err != nil {
				return nil, fmt.Errorf("failed to push branch: %w", err)
			}
			tag := wctx.version.TagName()
			if err := o.gitRepo.PushTag(ctx, tag); err != nil {
				return nil, fmt.Errorf("failed to push tag: %w", err)
			}
			return map[string]any{"tag": tag, "branch": wctx.branch, "pushed": true}, nil
		},
		Compensate: compensator.DeleteRemoteTag,
	})
}

func (o *ReleaseOrchestrator) addBuildStep(
	saga *SagaExecutor,
	compensator *CompensatingActions,
	wctx *releaseContext,
) {
	saga.AddStep(SagaStep{
		Name:    "Build Distributions",
		Type:    domain.OperationTypeBuildDist,
		When:    whenWrite,
		NoRetry: true,
		Execute: func(ctx context.Context) (map[string]any, error) {
			if err := o.builder.Build(ctx, o.settings.DistDir); err != nil {
				return nil, err
			}
			collect := &usecase.CollectArtifactsUseCase{FS: o.fsRepo}
			artifacts, err := collect.Execute(ctx, o.settings.DistDir)
			if err != nil {
				return nil, err
			}
			wctx.artifacts = artifacts
			return map[string]any{"artifacts": usecase.ArtifactPaths(artifacts)}, nil
		},
		Compensate: compensator.NoOp,
	})
}

func (o *ReleaseOrchestrator) addGithubReleaseStep(
	saga *SagaExecutor,
	cfg ReleaseConfig,
	compensator *CompensatingActions,
	wctx *releaseContext,
) {
	saga.AddStep(SagaStep{
		Name:    "Create GitHub Release",
		Type:    domain.OperationTypeCreateGithubRelease,
		When:    whenPublish,
		NoRetry: true,
		Execute: func(ctx context.Context) (map[string]any, error) {
			extract := &usecase.ExtractReleaseNotesUseCase{FS: o.fsRepo}
			notes, err := extract.Execute(ctx, o.settings.ChangelogFile, wctx.version)
			if err != nil {
				return nil, fmt.Errorf("failed to extract release notes: %w", err)
			}
			wctx.notes = notes
			release := &domain.Release{
				Version:   wctx.version,
				Channel:   cfg.Prerelease,
				Changelog: wctx.section,
				Notes:     wctx.notes,
				TagName:   wctx.version.TagName(),
				Artifacts: wctx.artifacts,
			}
			body, err := (&usecase.PrepareReleaseBodyUseCase{PackageName: o.settings.PackageName}).Execute(ctx, release)
			if err != nil {
				return nil, fmt.Errorf("failed to prepare release body: %w", err)
			}
			info, err := o.createRelease(ctx, release, body)
			if err != nil {
				return nil, err
			}
			data := map[string]any{"release_id": info.ID, "tag": release.TagName}
			for _, artifact := range release.Artifacts {
				if err := o.uploadAsset(ctx, info.ID, artifact); err != nil {
					// A failed step is not compensated, so drop the partial release here
					if delErr := compensator.DeleteGithubRelease(context.WithoutCancel(ctx), data); delErr != nil {
						o.logger.Warn("failed to delete partial release", zap.Error(delErr))
					}
					return nil, err
				}
			}
			wctx.releaseURL = info.HTMLURL
			o.printCIOutput(cfg.CIOutput, "release_url=%s\n", info.HTMLURL)
			return data, nil
		},
		Compensate: compensator.DeleteGithubRelease,
	})
}

// createRelease creates the GitHub release, reusing one a previous attempt created
func (o *ReleaseOrchestrator) createRelease(
	ctx context.Context,
	release *domain.Release,
	body string,
) (*repository.ReleaseInfo, error) {
	existing, err := o.githubRepo.GetReleaseByTag(ctx, release.TagName)
	if err == nil {
		o.logger.Info("GitHub release already exists", zap.String("tag", release.TagName))
		return existing, nil
	}
	if !errors.Is(err, repository.ErrReleaseNotFound) {
		return nil, fmt.Errorf("failed to look up release: %w", err)
	}
	var info *repository.ReleaseInfo
	err = retry.Do(
		ctx,
		retry.WithMaxRetries(DefaultRetryCount, retry.NewExponential(DefaultRetryDelay)),
		func(ctx context.Context) error {
			created, createErr := o.githubRepo.CreateRelease(ctx, repository.ReleaseInput{
				TagName:    release.TagName,
				Name:       release.TagName,
				Body:       body,
				Prerelease: release.IsPrerelease(),
			})
			if createErr != nil {
				if errors.Is(createErr, repository.ErrGithubTokenRequired) {
					return createErr
				}
				return retry.RetryableError(createErr)
			}
			info = created
			return nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub release: %w", err)
	}
	return info, nil
}

func (o *ReleaseOrchestrator) uploadAsset(ctx context.Context, releaseID int64, artifact domain.Artifact) error {
	err := retry.Do(
		ctx,
		retry.WithMaxRetries(DefaultRetryCount, retry.NewExponential(DefaultRetryDelay)),
		func(ctx context.Context) error {
			if err := o.githubRepo.UploadReleaseAsset(ctx, releaseID, artifact.Path); err != nil {
				return retry.RetryableError(err)
			}
			return nil
		},
	)
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", artifact.Name, err)
	}
	return nil
}

// performRollback rolls back a failed release session
func (o *ReleaseOrchestrator) performRollback(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		state, err := o.stateRepo.LoadLatest(ctx)
		if err != nil {
			return fmt.Errorf("failed to load latest session: %w", err)
		}
		sessionID = state.SessionID
	}
	saga, err := LoadExistingSaga(ctx, o.stateRepo, sessionID, o.logger)
	if err != nil {
		return fmt.Errorf("failed to load saga: %w", err)
	}
	compensator := NewCompensatingActions(o.gitRepo, o.githubRepo, o.logger)
	// A loaded saga has no function pointers; rebuild the compensations
	rebuildSagaSteps(saga, compensator)
	if err := saga.Rollback(ctx); err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}
	fmt.Fprintf(o.out, "Rollback of session %s completed\n", sessionID)
	return nil
}

// rebuildSagaSteps rebuilds the saga steps with compensating actions
func rebuildSagaSteps(saga *SagaExecutor, compensator *CompensatingActions) {
	compensateMap := map[domain.OperationType]func(context.Context, map[string]any) error{
		domain.OperationTypeCheckChanges:        compensator.NoOp,
		domain.OperationTypeCalculateVersion:    compensator.NoOp,
		domain.OperationTypeUpdateVersionFile:   compensator.RestoreFiles,
		domain.OperationTypeUpdateChangelog:     compensator.RestoreFiles,
		domain.OperationTypeCommitChanges:       compensator.ResetCommit,
		domain.OperationTypeCreateTag:           compensator.DeleteTag,
		domain.OperationTypePushRelease:         compensator.DeleteRemoteTag,
		domain.OperationTypeBuildDist:           compensator.NoOp,
		domain.OperationTypeCreateGithubRelease: compensator.DeleteGithubRelease,
	}
	for _, op := range saga.GetState().Operations {
		if compensate, ok := compensateMap[op.Type]; ok {
			saga.AddStep(SagaStep{
				Name:       string(op.Type),
				Type:       op.Type,
				Compensate: compensate,
			})
		}
	}
}

// printCIOutput prints key=value lines when CI output is enabled
func (o *ReleaseOrchestrator) printCIOutput(ciOutput bool, format string, args ...any) {
	if ciOutput {
		fmt.Fprintf(o.out, format, args...)
	}
}

// printStatus prints status messages when not in CI mode
func (o *ReleaseOrchestrator) printStatus(ciOutput bool, message string) {
	if !ciOutput && message != "" {
		fmt.Fprintln(o.out, message)
	}
}

// permanentIfExit stops retries for tool failures; rerunning a tool that
// exited non-zero gives the same answer.
func permanentIfExit(err error) error {
	var exitErr *service.ExitError
	if errors.As(err, &exitErr) || errors.Is(err, service.ErrToolNotFound) {
		return permanent(err)
	}
	return err
}
