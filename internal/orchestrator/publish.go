package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/onvifscout/scout-release/internal/domain"
	"github.com/onvifscout/scout-release/internal/repository"
	"github.com/onvifscout/scout-release/internal/service"
	"github.com/onvifscout/scout-release/internal/usecase"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// PublishConfig contains configuration for the PyPI publish workflow.
type PublishConfig struct {
	// Tag is the release tag; empty reads the version file.
	Tag           string
	DryRun        bool
	SkipExisting  bool
	RepositoryURL string
	// SkipBuild uploads what is already in the dist directory.
	SkipBuild bool
	CIOutput  bool
}

// PublishOrchestrator builds the distributions and uploads them to PyPI.
type PublishOrchestrator struct {
	fsRepo   repository.FileSystemRepository
	builder  service.BuildService
	twine    service.TwineService
	pypi     service.PyPIClient
	settings Settings
	logger   *zap.Logger
	out      io.Writer
}

// NewPublishOrchestrator creates a new publish orchestrator.
func NewPublishOrchestrator(
	fsRepo repository.FileSystemRepository,
	builder service.BuildService,
	twine service.TwineService,
	pypi service.PyPIClient,
	settings Settings,
	logger *zap.Logger,
) *PublishOrchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PublishOrchestrator{
		fsRepo:   fsRepo,
		builder:  builder,
		twine:    twine,
		pypi:     pypi,
		settings: settings,
		logger:   logger,
		out:      os.Stdout,
	}
}

// SetOutput redirects status lines and CI outputs.
func (o *PublishOrchestrator) SetOutput(w io.Writer) {
	o.out = w
}

type publishContext struct {
	version   *domain.Version
	published bool
	files     []string
}

// Execute publishes the release. A version already on PyPI is a no-op.
func (o *PublishOrchestrator) Execute(ctx context.Context, cfg PublishConfig) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultWorkflowTimeout)
	defer cancel()
	version, err := o.resolveVersion(ctx, cfg.Tag)
	if err != nil {
		return err
	}
	if !cfg.DryRun && o.settings.PypiToken == "" {
		return errors.New("pypi_token is required for publishing")
	}
	pctx := &publishContext{version: version}
	saga := NewSagaExecutor(nil, false, o.logger)
	saga.SetVersion(version.Plain())
	saga.SetTagName(version.TagName())
	saga.SetConditionParams(func() map[string]any {
		return map[string]any{
			ParamDryRun:     cfg.DryRun,
			ParamPrerelease: version.IsPrerelease(),
			ParamPublished:  pctx.published,
			ParamSkipBuild:  cfg.SkipBuild,
		}
	})
	o.addCheckPublishedStep(saga, pctx)
	o.addBuildStep(saga)
	o.addVerifyStep(saga, pctx)
	o.addUploadStep(saga, cfg, pctx)

	execErr := saga.Execute(ctx)
	if cfg.CIOutput {
		fmt.Fprintf(o.out, "version=%s\n", version.Plain())
		fmt.Fprintf(o.out, "published=%t\n", execErr == nil && !cfg.DryRun && !pctx.published)
	} else {
		fmt.Fprintln(o.out, RenderSummary(saga.Results()))
	}
	if execErr != nil {
		return fmt.Errorf("publish workflow failed: %w", execErr)
	}
	return nil
}

// resolveVersion reads the version from the tag, or from the version file
func (o *PublishOrchestrator) resolveVersion(ctx context.Context, tag string) (*domain.Version, error) {
	reader := &usecase.UpdateVersionFileUseCase{FS: o.fsRepo}
	fileVersion, fileErr := reader.Read(ctx, o.settings.VersionFile)
	if tag == "" {
		if fileErr != nil {
			return nil, fmt.Errorf("failed to read version: %w", fileErr)
		}
		tag = fileVersion
	}
	version, err := domain.NewVersion(tag)
	if err != nil {
		return nil, fmt.Errorf("invalid release version %q: %w", tag, err)
	}
	if fileErr == nil && fileVersion != version.Plain() {
		o.logger.Warn("version file does not match the release tag",
			zap.String("version_file", fileVersion),
			zap.String("tag", version.TagName()))
	}
	return version, nil
}

func (o *PublishOrchestrator) addCheckPublishedStep(saga *SagaExecutor, pctx *publishContext) {
	saga.AddStep(SagaStep{
		Name:    "Check PyPI",
		Type:    domain.OperationTypeCheckPublished,
		NoRetry: true,
		Execute: func(ctx context.Context) (map[string]any, error) {
			exists, err := o.pypi.VersionExists(ctx, o.settings.PackageName, pctx.version.Plain())
			if err != nil {
				// The upload reports the conflict itself if the probe was wrong
				o.logger.Warn("could not check PyPI for an existing release", zap.Error(err))
				return map[string]any{}, nil
			}
			if exists {
				o.logger.Info("version already published",
					zap.String("package", o.settings.PackageName),
					zap.String("version", pctx.version.Plain()))
			}
			pctx.published = exists
			return map[string]any{"published": exists}, nil
		},
	})
}

func (o *PublishOrchestrator) addBuildStep(saga *SagaExecutor) {
	saga.AddStep(SagaStep{
		Name:    "Build Distributions",
		Type:    domain.OperationTypeBuildDist,
		When:    "!published && !skip_build",
		NoRetry: true,
		Execute: func(ctx context.Context) (map[string]any, error) {
			if err := o.builder.Build(ctx, o.settings.DistDir); err != nil {
				return nil, err
			}
			return map[string]any{"dist_dir": o.settings.DistDir}, nil
		},
	})
}

func (o *PublishOrchestrator) addVerifyStep(saga *SagaExecutor, pctx *publishContext) {
	saga.AddStep(SagaStep{
		Name:    "Verify Distributions",
		Type:    domain.OperationTypeVerifyDist,
		When:    "!published",
		NoRetry: true,
		Execute: func(ctx context.Context) (map[string]any, error) {
			collect := &usecase.CollectArtifactsUseCase{FS: o.fsRepo}
			artifacts, err := collect.Execute(ctx, o.settings.DistDir)
			if err != nil {
				return nil, err
			}
			pctx.files = matchingArtifacts(artifacts, pctx.version)
			if len(pctx.files) == 0 {
				return nil, fmt.Errorf("%w for version %s in %s", usecase.ErrNoArtifacts, pctx.version.Plain(), o.settings.DistDir)
			}
			if err := o.twine.Check(ctx, pctx.files); err != nil {
				return nil, err
			}
			return map[string]any{"files": pctx.files}, nil
		},
	})
}

func (o *PublishOrchestrator) addUploadStep(saga *SagaExecutor, cfg PublishConfig, pctx *publishContext) {
	saga.AddStep(SagaStep{
		Name:    "Upload to PyPI",
		Type:    domain.OperationTypePublishPyPI,
		When:    "!published && !dry_run",
		NoRetry: true,
		Execute: func(ctx context.Context) (map[string]any, error) {
			opts := service.UploadOptions{
				Token:         o.settings.PypiToken,
				RepositoryURL: cfg.RepositoryURL,
				SkipExisting:  cfg.SkipExisting,
			}
			err := retry.Do(
				ctx,
				retry.WithMaxRetries(DefaultRetryCount, retry.NewExponential(DefaultRetryDelay)),
				func(ctx context.Context) error {
					if err := o.twine.Upload(ctx, pctx.files, opts); err != nil {
						var exitErr *service.ExitError
						if errors.As(err, &exitErr) && !exitErr.TimedOut {
							return retry.RetryableError(err)
						}
						return err
					}
					return nil
				},
			)
			if err != nil {
				return nil, err
			}
			return map[string]any{"files": pctx.files}, nil
		},
	})
}

// matchingArtifacts keeps the distributions built for version. Wheel and
// sdist names carry the normalized version, so 1.2.0-rc.1 appears as 1.2.0rc1.
func matchingArtifacts(artifacts []domain.Artifact, version *domain.Version) []string {
	candidates := []string{version.Plain(), pep440(version)}
	var files []string
	for _, a := range artifacts {
		if !a.IsDistribution() {
			continue
		}
		for _, v := range candidates {
			if strings.Contains(a.Name, "-"+v+"-") || strings.HasSuffix(a.Name, "-"+v+".tar.gz") {
				files = append(files, a.Path)
				break
			}
		}
	}
	return files
}

var pep440Labels = strings.NewReplacer("alpha", "a", "beta", "b", ".", "", "-", "")

// pep440 renders a semver prerelease the way Python packaging normalizes it.
func pep440(version *domain.Version) string {
	core, pre, ok := strings.Cut(version.Plain(), "-")
	if !ok {
		return core
	}
	return core + pep440Labels.Replace(pre)
}
