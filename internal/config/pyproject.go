package config

import (
	"fmt"
	"os"
	"path"
	"slices"
	"strings"

	"github.com/onvifscout/scout-release/internal/domain"
	"github.com/pelletier/go-toml/v2"
)

type pyProjectFile struct {
	Project struct {
		Name    string `toml:"name"`
		Version string `toml:"version"`
	} `toml:"project"`
	Tool struct {
		SemanticRelease struct {
			VersionVariables []string `toml:"version_variables"`
			Changelog        struct {
				ChangelogFile string `toml:"changelog_file"`
			} `toml:"changelog"`
			CommitParserOptions struct {
				AllowedTags []string `toml:"allowed_tags"`
				MinorTags   []string `toml:"minor_tags"`
				PatchTags   []string `toml:"patch_tags"`
			} `toml:"commit_parser_options"`
		} `toml:"semantic_release"`
		Ruff struct {
			LineLength    int    `toml:"line-length"`
			TargetVersion string `toml:"target-version"`
		} `toml:"ruff"`
	} `toml:"tool"`
}

// LoadPyProject reads and parses a pyproject.toml file.
func LoadPyProject(filename string) (*domain.Project, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return ParsePyProject(data)
}

// ParsePyProject extracts the release-relevant parts of pyproject.toml.
func ParsePyProject(data []byte) (*domain.Project, error) {
	var raw pyProjectFile
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse pyproject.toml: %w", err)
	}
	sr := raw.Tool.SemanticRelease
	taxonomy := domain.DefaultCommitTaxonomy()
	if len(sr.CommitParserOptions.AllowedTags) > 0 {
		taxonomy.AllowedTags = sr.CommitParserOptions.AllowedTags
	}
	if len(sr.CommitParserOptions.MinorTags) > 0 {
		taxonomy.MinorTags = sr.CommitParserOptions.MinorTags
	}
	if len(sr.CommitParserOptions.PatchTags) > 0 {
		taxonomy.PatchTags = sr.CommitParserOptions.PatchTags
	}
	return &domain.Project{
		Name:             strings.TrimSpace(raw.Project.Name),
		Version:          strings.TrimSpace(raw.Project.Version),
		VersionVariables: sr.VersionVariables,
		ChangelogFile:    strings.TrimSpace(sr.Changelog.ChangelogFile),
		Taxonomy:         taxonomy,
		RuffLineLength:   raw.Tool.Ruff.LineLength,
		RuffTarget:       raw.Tool.Ruff.TargetVersion,
	}, nil
}

// versionModules are the module names treated as a dedicated version file.
var versionModules = []string{"__version__.py", "_version.py", "version.py"}

// VersionFileFromVariables picks the first dedicated version module among
// semantic-release "path:variable" entries.
func VersionFileFromVariables(entries []string) string {
	for _, entry := range entries {
		file, variable, ok := strings.Cut(entry, ":")
		if !ok || strings.TrimSpace(variable) != "__version__" {
			continue
		}
		file = strings.TrimSpace(file)
		if slices.Contains(versionModules, path.Base(file)) {
			return file
		}
	}
	return ""
}

func applyProjectDefaults(cfg *Config, project *domain.Project) {
	if project.Name != "" {
		cfg.PackageName = project.Name
	}
	if project.ChangelogFile != "" {
		cfg.ChangelogFile = project.ChangelogFile
	}
	if file := VersionFileFromVariables(project.VersionVariables); file != "" {
		cfg.VersionFile = file
	}
}
