package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/onvifscout/scout-release/internal/config"
	"github.com/onvifscout/scout-release/internal/domain"
	"github.com/onvifscout/scout-release/internal/orchestrator"
	"github.com/onvifscout/scout-release/internal/repository"
	"github.com/onvifscout/scout-release/internal/service"
	"go.uber.org/zap"
)

// container holds all the dependencies for the application. Commands that
// need the project configuration call load; the rest only need a logger.
type container struct {
	cfg      *config.Config
	logger   *zap.Logger
	taxonomy domain.CommitTaxonomy

	fsRepo repository.FileSystemRepository
	runner service.CommandRunner
}

func newContainer() *container {
	return &container{}
}

// load reads the configuration and builds the shared dependencies once.
func (c *container) load() error {
	if c.cfg != nil {
		return nil
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	taxonomy := domain.DefaultCommitTaxonomy()
	if project, err := config.LoadPyProject("pyproject.toml"); err == nil {
		taxonomy = project.Taxonomy
	} else if !errors.Is(err, os.ErrNotExist) {
		logger.Warn("failed to read commit taxonomy from pyproject.toml", zap.Error(err))
	}
	c.cfg = cfg
	c.logger = logger
	c.taxonomy = taxonomy
	c.fsRepo = repository.NewFileSystem("")
	c.runner = service.NewOSCommandRunner(logger)
	return nil
}

// loadLogger builds only the logger, for commands that run without project
// configuration.
func (c *container) loadLogger() error {
	if c.logger != nil {
		return nil
	}
	logger, err := newLogger(os.Getenv("SCOUT_RELEASE_LOG_LEVEL"), os.Getenv("SCOUT_RELEASE_LOG_FORMAT"))
	if err != nil {
		return err
	}
	c.logger = logger
	c.fsRepo = repository.NewFileSystem("")
	c.runner = service.NewOSCommandRunner(logger)
	return nil
}

func (c *container) settings() orchestrator.Settings {
	return orchestrator.SettingsFromConfig(c.cfg, c.taxonomy)
}

func (c *container) gitRepo() (repository.GitRepository, error) {
	gitRepo, err := repository.NewGitRepository(".", c.cfg.GithubToken, c.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open git repository: %w", err)
	}
	return gitRepo, nil
}

// githubRepo returns the GitHub client, or a noop client without a token so
// dry runs work offline.
func (c *container) githubRepo() (repository.GithubRepository, error) {
	if c.cfg.GithubToken == "" {
		return repository.NewGithubNoopRepository(c.cfg.GithubOwner, c.cfg.GithubRepo), nil
	}
	if err := c.cfg.ValidateForGitHubOperations(); err != nil {
		return nil, err
	}
	return repository.NewGithubRepository(c.cfg.GithubToken, c.cfg.GithubOwner, c.cfg.GithubRepo, c.logger)
}

func (c *container) semanticRelease() service.SemanticReleaseService {
	env := map[string]string{}
	if c.cfg != nil && c.cfg.GithubToken != "" {
		env["GH_TOKEN"] = c.cfg.GithubToken
	}
	return service.NewSemanticReleaseService(c.runner, c.logger, env)
}

func (c *container) builder() service.BuildService {
	return service.NewBuildService(c.runner, c.logger, c.cfg.PythonBin)
}

func (c *container) releaseOrchestrator() (*orchestrator.ReleaseOrchestrator, error) {
	if err := c.load(); err != nil {
		return nil, err
	}
	gitRepo, err := c.gitRepo()
	if err != nil {
		return nil, err
	}
	ghRepo, err := c.githubRepo()
	if err != nil {
		return nil, err
	}
	stateRepo := repository.NewJSONStateRepository(c.fsRepo, c.cfg.StateDir, c.logger)
	return orchestrator.NewReleaseOrchestrator(
		gitRepo,
		ghRepo,
		c.fsRepo,
		c.semanticRelease(),
		c.builder(),
		stateRepo,
		c.settings(),
		c.logger,
	), nil
}

func (c *container) lintOrchestrator() (*orchestrator.LintOrchestrator, error) {
	if err := c.load(); err != nil {
		return nil, err
	}
	return orchestrator.NewLintOrchestrator(service.NewRuffService(c.runner, c.logger), c.logger), nil
}

func (c *container) publishOrchestrator() (*orchestrator.PublishOrchestrator, error) {
	if err := c.load(); err != nil {
		return nil, err
	}
	return orchestrator.NewPublishOrchestrator(
		c.fsRepo,
		c.builder(),
		service.NewTwineService(c.runner, c.logger),
		service.NewPyPIClient(c.cfg.PypiURL, c.logger),
		c.settings(),
		c.logger,
	), nil
}

func (c *container) dispatcher() (*orchestrator.Dispatcher, error) {
	if err := c.load(); err != nil {
		return nil, err
	}
	// Each workflow is built on demand so a lint run never opens GitHub clients.
	return orchestrator.NewDispatcher(
		lazyRelease{c},
		lazyLint{c},
		lazyPublish{c},
		c.fsRepo,
		os.Getenv,
		c.cfg.MainBranch,
		c.logger,
	), nil
}
