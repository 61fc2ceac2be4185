package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/spf13/viper"
)

const (
	configFileName = ".scout-release"
	envPrefix      = "SCOUT_RELEASE"
)

var (
	classicPAT     = regexp.MustCompile(`^[a-fA-F0-9]{40}$`)
	fineGrainedPAT = regexp.MustCompile(`^github_pat_[a-zA-Z0-9_]{82}$`)
	prefixedToken  = regexp.MustCompile(`^gh[opsur]_[a-zA-Z0-9]{36,251}$`)
	validName      = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9\-_.]*[a-zA-Z0-9]$|^[a-zA-Z0-9]$`)
	packageName    = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9._-]*[A-Za-z0-9])?$`)
)

type Config struct {
	GithubToken   string `mapstructure:"github_token"`
	GithubOwner   string `mapstructure:"github_owner"`
	GithubRepo    string `mapstructure:"github_repo"`
	PypiToken     string `mapstructure:"pypi_token"`
	PypiURL       string `mapstructure:"pypi_url"`
	PackageName   string `mapstructure:"package_name"`
	VersionFile   string `mapstructure:"version_file"`
	ChangelogFile string `mapstructure:"changelog_file"`
	DistDir       string `mapstructure:"dist_dir"`
	MainBranch    string `mapstructure:"main_branch"`
	PythonBin     string `mapstructure:"python_bin"`
	StateDir      string `mapstructure:"state_dir"`
	LogLevel      string `mapstructure:"log_level"`
	LogFormat     string `mapstructure:"log_format"`
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		PypiURL:       "https://pypi.org",
		PackageName:   "onvifscout",
		VersionFile:   "onvifscout/__version__.py",
		ChangelogFile: "CHANGELOG.md",
		DistDir:       "dist",
		MainBranch:    "main",
		PythonBin:     "python",
		StateDir:      ".release-state",
		LogLevel:      "info",
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Tokens are optional - only validate if provided
	if c.GithubToken != "" {
		if err := ValidateGitHubToken(c.GithubToken); err != nil {
			return fmt.Errorf("invalid github_token: %w", err)
		}
	}
	if c.PypiToken != "" {
		if err := ValidatePypiToken(c.PypiToken); err != nil {
			return fmt.Errorf("invalid pypi_token: %w", err)
		}
	}
	if c.GithubOwner != "" || c.GithubRepo != "" {
		if err := ValidateGitHubOwnerRepo(c.GithubOwner, c.GithubRepo); err != nil {
			return fmt.Errorf("invalid github configuration: %w", err)
		}
	}
	if !packageName.MatchString(c.PackageName) {
		return fmt.Errorf("invalid package_name: %q", c.PackageName)
	}
	paths := map[string]string{
		"version_file":   c.VersionFile,
		"changelog_file": c.ChangelogFile,
		"dist_dir":       c.DistDir,
		"state_dir":      c.StateDir,
	}
	for key, value := range paths {
		if value == "" {
			return fmt.Errorf("%s cannot be empty", key)
		}
		// Check for path traversal in configured paths
		if strings.Contains(value, "..") {
			return fmt.Errorf("%s contains invalid path traversal", key)
		}
	}
	if c.MainBranch == "" {
		return fmt.Errorf("main_branch cannot be empty")
	}
	if c.PythonBin == "" {
		return fmt.Errorf("python_bin cannot be empty")
	}
	return nil
}

// ValidateForGitHubOperations validates that GitHub token and repository are present
func (c *Config) ValidateForGitHubOperations() error {
	if c.GithubToken == "" {
		return fmt.Errorf("github_token is required for GitHub operations")
	}
	if err := ValidateGitHubOwnerRepo(c.GithubOwner, c.GithubRepo); err != nil {
		return fmt.Errorf("invalid github configuration: %w", err)
	}
	return c.Validate()
}

// ValidateForPublish validates that a PyPI token is present
func (c *Config) ValidateForPublish() error {
	if c.PypiToken == "" {
		return fmt.Errorf("pypi_token is required for publishing")
	}
	return c.Validate()
}

// ValidateGitHubToken validates GitHub token format (exported for reuse)
func ValidateGitHubToken(token string) error {
	token = strings.TrimSpace(token)
	if len(token) < 40 {
		return fmt.Errorf("token too short: expected at least 40 characters")
	}
	if !classicPAT.MatchString(token) &&
		!fineGrainedPAT.MatchString(token) &&
		!prefixedToken.MatchString(token) {
		return fmt.Errorf("invalid token format")
	}
	return nil
}

// ValidatePypiToken validates the shape of a PyPI API token
func ValidatePypiToken(token string) error {
	token = strings.TrimSpace(token)
	if !strings.HasPrefix(token, "pypi-") {
		return fmt.Errorf("invalid token format: expected pypi- prefix")
	}
	if len(token) < 20 {
		return fmt.Errorf("token too short")
	}
	return nil
}

// ValidateGitHubOwnerRepo validates GitHub owner and repository names (exported for reuse)
func ValidateGitHubOwnerRepo(owner, repo string) error {
	if owner == "" {
		return fmt.Errorf("owner cannot be empty")
	}
	if repo == "" {
		return fmt.Errorf("repository cannot be empty")
	}
	if !validName.MatchString(owner) {
		return fmt.Errorf("invalid owner format: %s", owner)
	}
	if len(owner) > 39 {
		return fmt.Errorf("owner too long: maximum 39 characters")
	}
	if !validName.MatchString(repo) {
		return fmt.Errorf("invalid repository format: %s", repo)
	}
	if len(repo) > 100 {
		return fmt.Errorf("repository too long: maximum 100 characters")
	}
	return nil
}

// LoadConfig reads .scout-release.yaml, the environment and pyproject.toml.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName(configFileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	// BindEnv checks the listed variables in order
	bindings := map[string][]string{
		"github_token":   {"GH_TOKEN", "GITHUB_TOKEN", "SCOUT_RELEASE_GITHUB_TOKEN"},
		"github_owner":   {"GITHUB_OWNER", "SCOUT_RELEASE_GITHUB_OWNER"},
		"github_repo":    {"GITHUB_REPO", "SCOUT_RELEASE_GITHUB_REPO"},
		"pypi_token":     {"PYPI_TOKEN", "SCOUT_RELEASE_PYPI_TOKEN"},
		"pypi_url":       {"PYPI_URL", "SCOUT_RELEASE_PYPI_URL"},
		"package_name":   {"SCOUT_RELEASE_PACKAGE_NAME"},
		"version_file":   {"SCOUT_RELEASE_VERSION_FILE"},
		"changelog_file": {"SCOUT_RELEASE_CHANGELOG_FILE"},
		"dist_dir":       {"SCOUT_RELEASE_DIST_DIR"},
		"main_branch":    {"SCOUT_RELEASE_MAIN_BRANCH"},
		"python_bin":     {"PYTHON_BIN", "SCOUT_RELEASE_PYTHON_BIN"},
		"state_dir":      {"SCOUT_RELEASE_STATE_DIR"},
		"log_level":      {"SCOUT_RELEASE_LOG_LEVEL"},
		"log_format":     {"SCOUT_RELEASE_LOG_FORMAT"},
	}
	for key, envs := range bindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("failed to bind %s env: %w", key, err)
		}
	}
	defaults := DefaultConfig()
	// pyproject.toml supplies project-specific defaults when present
	if project, err := LoadPyProject("pyproject.toml"); err == nil {
		applyProjectDefaults(defaults, project)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read pyproject.toml: %w", err)
	}
	v.SetDefault("pypi_url", defaults.PypiURL)
	v.SetDefault("package_name", defaults.PackageName)
	v.SetDefault("version_file", defaults.VersionFile)
	v.SetDefault("changelog_file", defaults.ChangelogFile)
	v.SetDefault("dist_dir", defaults.DistDir)
	v.SetDefault("main_branch", defaults.MainBranch)
	v.SetDefault("python_bin", defaults.PythonBin)
	v.SetDefault("state_dir", defaults.StateDir)
	v.SetDefault("log_level", defaults.LogLevel)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	config.GithubToken = strings.TrimSpace(config.GithubToken)
	config.PypiToken = strings.TrimSpace(config.PypiToken)
	if err := populateRepositoryDefaults(&config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &config, nil
}

// populateRepositoryDefaults fills owner/repo from GitHub Actions env, then from the origin remote.
func populateRepositoryDefaults(cfg *Config) error {
	if cfg.GithubOwner == "" {
		cfg.GithubOwner = strings.TrimSpace(os.Getenv("GITHUB_REPOSITORY_OWNER"))
	}
	if cfg.GithubRepo == "" {
		cfg.GithubRepo = strings.TrimSpace(os.Getenv("GITHUB_REPOSITORY_NAME"))
	}
	if slug := strings.TrimSpace(os.Getenv("GITHUB_REPOSITORY")); slug != "" {
		if owner, repo, ok := strings.Cut(slug, "/"); ok {
			if cfg.GithubOwner == "" {
				cfg.GithubOwner = owner
			}
			if cfg.GithubRepo == "" {
				cfg.GithubRepo = repo
			}
		}
	}
	if cfg.GithubOwner != "" && cfg.GithubRepo != "" {
		return nil
	}
	repo, err := git.PlainOpenWithOptions(".", &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		// Not a git checkout; GitHub operations will report the missing slug
		return nil
	}
	remote, err := repo.Remote("origin")
	if err != nil {
		return nil
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return nil
	}
	owner, name, err := parseGitRemoteURL(urls[0])
	if err != nil {
		return fmt.Errorf("failed to derive repository from origin remote: %w", err)
	}
	if cfg.GithubOwner == "" {
		cfg.GithubOwner = owner
	}
	if cfg.GithubRepo == "" {
		cfg.GithubRepo = name
	}
	return nil
}

// parseGitRemoteURL extracts owner and repository from https, scp-like ssh or path remotes.
func parseGitRemoteURL(raw string) (string, string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", "", fmt.Errorf("empty remote url")
	}
	trimmed = strings.TrimSuffix(trimmed, "/")
	trimmed = strings.TrimSuffix(trimmed, ".git")
	path := trimmed
	switch {
	case strings.Contains(trimmed, "://"):
		_, rest, _ := strings.Cut(trimmed, "://")
		if _, p, ok := strings.Cut(rest, "/"); ok {
			path = p
		} else {
			return "", "", fmt.Errorf("remote url has no path: %s", raw)
		}
	case strings.Contains(trimmed, "@") && strings.Contains(trimmed, ":"):
		_, p, _ := strings.Cut(trimmed, ":")
		path = p
	}
	path = filepath.ToSlash(path)
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 {
		return "", "", fmt.Errorf("remote url does not contain owner and repository: %s", raw)
	}
	owner, repo := parts[len(parts)-2], parts[len(parts)-1]
	if owner == "" || repo == "" {
		return "", "", fmt.Errorf("remote url does not contain owner and repository: %s", raw)
	}
	return owner, repo, nil
}
