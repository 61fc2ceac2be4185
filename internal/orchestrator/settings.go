package orchestrator

import (
	"github.com/onvifscout/scout-release/internal/config"
	"github.com/onvifscout/scout-release/internal/domain"
)

// Settings are the project paths and names the workflows operate on.
type Settings struct {
	PackageName   string
	VersionFile   string
	ChangelogFile string
	DistDir       string
	MainBranch    string
	PypiToken     string
	Taxonomy      domain.CommitTaxonomy
}

// SettingsFromConfig copies the relevant configuration values.
func SettingsFromConfig(cfg *config.Config, taxonomy domain.CommitTaxonomy) Settings {
	return Settings{
		PackageName:   cfg.PackageName,
		VersionFile:   cfg.VersionFile,
		ChangelogFile: cfg.ChangelogFile,
		DistDir:       cfg.DistDir,
		MainBranch:    cfg.MainBranch,
		PypiToken:     cfg.PypiToken,
		Taxonomy:      taxonomy,
	}
}
