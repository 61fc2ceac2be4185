package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/onvifscout/scout-release/internal/domain"
	"github.com/onvifscout/scout-release/internal/repository"
)

const (
	breakingChangesTitle = "Breaking Changes"
	noNotableChanges     = "_No notable changes._"
)

// leadingTags fixes the order of the first changelog groups; remaining
// taxonomy tags follow in configuration order.
var leadingTags = []string{"feat", "fix", "perf", "docs", "refactor"}

// GenerateChangelogUseCase renders the changelog section for a release from
// the commits since the latest tag.
type GenerateChangelogUseCase struct {
	GitRepo  repository.GitRepository
	Taxonomy domain.CommitTaxonomy
	Now      func() time.Time
}

// Execute returns the markdown section for version.
func (uc *GenerateChangelogUseCase) Execute(ctx context.Context, version *domain.Version) (*domain.ChangelogSection, string, error) {
	if version == nil {
		return nil, "", fmt.Errorf("version cannot be nil")
	}
	latestTag, err := uc.GitRepo.LatestTag(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get latest tag: %w", err)
	}
	commits, err := uc.GitRepo.CommitMessagesSinceTag(ctx, latestTag)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read commits since %q: %w", latestTag, err)
	}
	now := time.Now
	if uc.Now != nil {
		now = uc.Now
	}
	taxonomy := uc.Taxonomy
	if len(taxonomy.AllowedTags) == 0 {
		taxonomy = domain.DefaultCommitTaxonomy()
	}
	section := BuildChangelogSection(commits, version, now().UTC(), taxonomy)
	return section, RenderChangelogSection(section), nil
}

// BuildChangelogSection groups conventional commits by taxonomy tag.
// Non-conventional commits, tags outside the taxonomy and release commits
// are left out.
func BuildChangelogSection(commits []domain.Commit, version *domain.Version, date time.Time, taxonomy domain.CommitTaxonomy) *domain.ChangelogSection {
	byTag := map[string][]domain.ChangelogEntry{}
	var breaking []domain.ChangelogEntry
	for _, c := range commits {
		cc := domain.ParseConventionalCommit(c)
		if cc.Type == "" || !taxonomy.Allows(cc.Type) {
			continue
		}
		if cc.Type == "chore" && cc.Scope == "release" {
			continue
		}
		entry := domain.ChangelogEntry{Scope: cc.Scope, Subject: cc.Subject, ShortHash: c.ShortHash()}
		if cc.Breaking {
			breaking = append(breaking, entry)
			continue
		}
		byTag[cc.Type] = append(byTag[cc.Type], entry)
	}
	section := &domain.ChangelogSection{Version: version, Date: date}
	if len(breaking) > 0 {
		section.Groups = append(section.Groups, domain.ChangelogGroup{Title: breakingChangesTitle, Entries: breaking})
	}
	seen := map[string]bool{}
	order := append(append([]string{}, leadingTags...), taxonomy.AllowedTags...)
	for _, tag := range order {
		if seen[tag] {
			continue
		}
		seen[tag] = true
		if entries := byTag[tag]; len(entries) > 0 {
			section.Groups = append(section.Groups, domain.ChangelogGroup{Title: taxonomy.Title(tag), Entries: entries})
		}
	}
	return section
}

// RenderChangelogSection renders section as markdown.
func RenderChangelogSection(section *domain.ChangelogSection) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s (%s)\n", section.Version.TagName(), section.Date.Format("2006-01-02"))
	if section.IsEmpty() {
		b.WriteString("\n" + noNotableChanges + "\n")
		return b.String()
	}
	for _, group := range section.Groups {
		fmt.Fprintf(&b, "\n### %s\n\n", group.Title)
		for _, e := range group.Entries {
			b.WriteString("- ")
			if e.Scope != "" {
				fmt.Fprintf(&b, "**%s:** ", e.Scope)
			}
			b.WriteString(e.Subject)
			if e.ShortHash != "" {
				fmt.Fprintf(&b, " (%s)", e.ShortHash)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}
