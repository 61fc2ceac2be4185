// Package workflows renders the GitHub Actions workflows that drive
// scout-release in CI.
package workflows

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/onvifscout/scout-release/internal/domain"
	"github.com/onvifscout/scout-release/internal/repository"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Default values for Config.
const (
	DefaultPythonVersion = "3.11"
	DefaultGoVersion     = "1.25"
	DefaultInstall       = "github.com/onvifscout/scout-release@latest"
	DefaultMainBranch    = "main"
	DefaultDir           = ".github/workflows"

	// ciOutputFile collects the key=value lines the ci command prints.
	ciOutputFile = "$RUNNER_TEMP/scout-release.out"
)

// Config controls the generated workflows.
type Config struct {
	MainBranch    string
	PythonVersion string
	GoVersion     string
	// Install is the `go install` target for the scout-release binary.
	Install string
	// PythonTools are pip-installed before scout-release runs.
	PythonTools []string
}

// DefaultConfig returns the configuration used by `scout-release workflows`.
func DefaultConfig() Config {
	return Config{
		MainBranch:    DefaultMainBranch,
		PythonVersion: DefaultPythonVersion,
		GoVersion:     DefaultGoVersion,
		Install:       DefaultInstall,
		PythonTools:   []string{"python-semantic-release", "build", "twine", "ruff"},
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MainBranch == "" {
		c.MainBranch = d.MainBranch
	}
	if c.PythonVersion == "" {
		c.PythonVersion = d.PythonVersion
	}
	if c.GoVersion == "" {
		c.GoVersion = d.GoVersion
	}
	if c.Install == "" {
		c.Install = d.Install
	}
	if len(c.PythonTools) == 0 {
		c.PythonTools = d.PythonTools
	}
	return c
}

// Workflow is a GitHub Actions workflow document.
type Workflow struct {
	Name        string            `yaml:"name"`
	On          Triggers          `yaml:"on"`
	Permissions map[string]string `yaml:"permissions,omitempty"`
	Concurrency *Concurrency      `yaml:"concurrency,omitempty"`
	Jobs        map[string]Job    `yaml:"jobs"`
}

// Triggers lists the events a workflow reacts to.
type Triggers struct {
	WorkflowDispatch *Dispatch     `yaml:"workflow_dispatch,omitempty"`
	Push             *BranchFilter `yaml:"push,omitempty"`
	PullRequest      *BranchFilter `yaml:"pull_request,omitempty"`
	Release          *TypeFilter   `yaml:"release,omitempty"`
}

// Dispatch declares manual trigger inputs.
type Dispatch struct {
	Inputs map[string]Input `yaml:"inputs,omitempty"`
}

// Input is a workflow_dispatch input.
type Input struct {
	Description string   `yaml:"description"`
	Required    bool     `yaml:"required"`
	Type        string   `yaml:"type"`
	Default     any      `yaml:"default"`
	Options     []string `yaml:"options,omitempty"`
}

// BranchFilter restricts push and pull_request events.
type BranchFilter struct {
	Branches []string `yaml:"branches"`
}

// TypeFilter restricts release events by activity type.
type TypeFilter struct {
	Types []string `yaml:"types"`
}

// Concurrency serializes runs of a workflow.
type Concurrency struct {
	Group            string `yaml:"group"`
	CancelInProgress bool   `yaml:"cancel-in-progress"`
}

// Job is a single workflow job.
type Job struct {
	Name        string            `yaml:"name"`
	RunsOn      string            `yaml:"runs-on"`
	Environment string            `yaml:"environment,omitempty"`
	Outputs     map[string]string `yaml:"outputs,omitempty"`
	Steps       []Step            `yaml:"steps"`
}

// Step is a job step; either Uses or Run is set.
type Step struct {
	Name  string            `yaml:"name"`
	ID    string            `yaml:"id,omitempty"`
	Uses  string            `yaml:"uses,omitempty"`
	With  map[string]any    `yaml:"with,omitempty"`
	Shell string            `yaml:"shell,omitempty"`
	Env   map[string]string `yaml:"env,omitempty"`
	Run   string            `yaml:"run,omitempty"`
}

// File is a rendered workflow.
type File struct {
	Name    string
	Content []byte
}

// Build returns the release, lint and publish workflows keyed by file name.
func Build(cfg Config) map[string]Workflow {
	cfg = cfg.withDefaults()
	channels := make([]string, 0, len(domain.PrereleaseChannels))
	for _, ch := range domain.PrereleaseChannels {
		channels = append(channels, string(ch))
	}
	return map[string]Workflow{
		"release.yml": {
			Name: "Release",
			On: Triggers{WorkflowDispatch: &Dispatch{Inputs: map[string]Input{
				"prerelease": {
					Description: "Prerelease channel",
					Required:    true,
					Type:        "choice",
					Default:     string(domain.PrereleaseNone),
					Options:     channels,
				},
				"dry_run": {
					Description: "Compute the release without writing anything",
					Required:    true,
					Type:        "boolean",
					Default:     false,
				},
			}}},
			Permissions: map[string]string{"contents": "write"},
			Concurrency: &Concurrency{Group: "release"},
			Jobs: map[string]Job{"release": {
				Name:    "Semantic release",
				RunsOn:  "ubuntu-latest",
				Outputs: outputs("released", "version", "tag"),
				Steps: append(setupSteps(cfg, true), ciStep(map[string]string{
					"GH_TOKEN": releaseToken,
				})),
			}},
		},
		"lint.yml": {
			Name: "Lint",
			On: Triggers{
				Push:        &BranchFilter{Branches: []string{cfg.MainBranch}},
				PullRequest: &BranchFilter{Branches: []string{cfg.MainBranch}},
			},
			Permissions: map[string]string{"contents": "read"},
			Jobs: map[string]Job{"lint": {
				Name:    "Ruff",
				RunsOn:  "ubuntu-latest",
				Outputs: outputs("lint_passed", "findings"),
				Steps:   append(setupSteps(cfg, false), ciStep(nil)),
			}},
		},
		"publish.yml": {
			Name:        "Publish",
			On:          Triggers{Release: &TypeFilter{Types: []string{"published"}}},
			Permissions: map[string]string{"contents": "read"},
			Jobs: map[string]Job{"publish": {
				Name:        "Upload to PyPI",
				RunsOn:      "ubuntu-latest",
				Environment: "pypi",
				Outputs:     outputs("version", "published"),
				Steps: append(setupSteps(cfg, false), ciStep(map[string]string{
					"PYPI_TOKEN": "${{ secrets.PYPI_TOKEN }}",
				})),
			}},
		},
	}
}

// releaseToken is a personal access token. Releases created with the
// built-in GITHUB_TOKEN do not start publish.yml.
const releaseToken = "${{ secrets.GH_TOKEN }}"

// setupSteps checks out the repository and installs the toolchain.
// semantic-release reads the full history and tags.
func setupSteps(cfg Config, fullHistory bool) []Step {
	checkout := Step{Name: "Checkout", Uses: "actions/checkout@v4"}
	if fullHistory {
		checkout.With = map[string]any{"fetch-depth": 0, "token": releaseToken}
	}
	return []Step{
		checkout,
		{Name: "Set up Python", Uses: "actions/setup-python@v5", With: map[string]any{"python-version": cfg.PythonVersion}},
		{Name: "Set up Go", Uses: "actions/setup-go@v5", With: map[string]any{"go-version": cfg.GoVersion}},
		{
			Name: "Install tools",
			Run: fmt.Sprintf("python -m pip install --upgrade pip %s\ngo install %s\n",
				strings.Join(cfg.PythonTools, " "), cfg.Install),
		},
	}
}

func ciStep(env map[string]string) Step {
	return Step{
		Name:  "Run scout-release",
		ID:    "scout",
		Shell: "bash",
		Env:   env,
		Run: fmt.Sprintf("scout-release ci --ci-output | tee %q\ngrep -E '^[a-z_]+=' %q >> \"$GITHUB_OUTPUT\" || true\n",
			ciOutputFile, ciOutputFile),
	}
}

func outputs(names ...string) map[string]string {
	m := make(map[string]string, len(names))
	for _, name := range names {
		m[name] = "${{ steps.scout.outputs." + name + " }}"
	}
	return m
}

// Generate renders the workflows as YAML, sorted by file name.
func Generate(cfg Config) ([]File, error) {
	built := Build(cfg)
	files := make([]File, 0, len(built))
	for _, name := range []string{"lint.yml", "publish.yml", "release.yml"} {
		var b strings.Builder
		enc := yaml.NewEncoder(&b)
		enc.SetIndent(2)
		if err := enc.Encode(built[name]); err != nil {
			return nil, fmt.Errorf("failed to render %s: %w", name, err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("failed to render %s: %w", name, err)
		}
		files = append(files, File{Name: name, Content: []byte(b.String())})
	}
	return files, nil
}

// Write renders the workflows into dir and returns the written paths.
func Write(fs afero.Fs, dir string, cfg Config) ([]string, error) {
	if dir == "" {
		dir = DefaultDir
	}
	files, err := Generate(cfg)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(files))
	for _, f := range files {
		path := filepath.Join(dir, f.Name)
		if err := repository.WriteFileAtomic(fs, path, f.Content, 0o644); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}
