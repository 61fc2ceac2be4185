package usecase

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/onvifscout/scout-release/internal/domain"
	"github.com/onvifscout/scout-release/internal/repository"
	"github.com/spf13/afero"
)

const defaultChangelogTitle = "# CHANGELOG"

var anyVersionHeading = regexp.MustCompile(`^#{1,6}\s+\[?v?\d+\.\d+\.\d+`)

// versionHeading matches a markdown heading for exactly version.
func versionHeading(version *domain.Version) *regexp.Regexp {
	return regexp.MustCompile(`^#{1,6}\s+\[?v?` + regexp.QuoteMeta(version.Plain()) + `(\]|\s|$|\()`)
}

// PrependChangelogUseCase inserts a release section at the top of the changelog.
type PrependChangelogUseCase struct {
	FS afero.Fs
}

// Execute inserts section below the top-level title of path. It returns
// false when the file already has a section for version.
func (uc *PrependChangelogUseCase) Execute(_ context.Context, path string, version *domain.Version, section string) (bool, error) {
	if version == nil {
		return false, fmt.Errorf("version cannot be nil")
	}
	data, err := afero.ReadFile(uc.FS, path)
	if err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to read changelog: %w", err)
	}
	existing := strings.ReplaceAll(string(data), "\r\n", "\n")
	heading := versionHeading(version)
	for _, line := range strings.Split(existing, "\n") {
		if heading.MatchString(line) {
			return false, nil
		}
	}
	updated := prependSection(existing, strings.TrimSpace(section))
	if err := repository.WriteFileAtomic(uc.FS, path, []byte(updated), 0o644); err != nil {
		return false, fmt.Errorf("failed to write changelog: %w", err)
	}
	return true, nil
}

func prependSection(existing, section string) string {
	lines := strings.Split(existing, "\n")
	title := defaultChangelogTitle
	rest := existing
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if strings.HasPrefix(line, "# ") {
			title = line
			rest = strings.Join(lines[i+1:], "\n")
		}
		break
	}
	rest = strings.TrimSpace(rest)
	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n\n")
	b.WriteString(section)
	b.WriteString("\n")
	if rest != "" {
		b.WriteString("\n")
		b.WriteString(rest)
		b.WriteString("\n")
	}
	return b.String()
}

// ExtractReleaseNotesUseCase reads the notes for one version from the changelog.
type ExtractReleaseNotesUseCase struct {
	FS afero.Fs
}

// Execute returns the section body for version, or "Release v<version>"
// when the changelog has no such heading.
func (uc *ExtractReleaseNotesUseCase) Execute(_ context.Context, path string, version *domain.Version) (string, error) {
	if version == nil {
		return "", fmt.Errorf("version cannot be nil")
	}
	data, err := afero.ReadFile(uc.FS, path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultReleaseNotes(version), nil
		}
		return "", fmt.Errorf("failed to read changelog: %w", err)
	}
	notes, ok := ExtractNotes(string(data), version)
	if !ok {
		return DefaultReleaseNotes(version), nil
	}
	return notes, nil
}

// DefaultReleaseNotes is the fallback body when no changelog section exists.
func DefaultReleaseNotes(version *domain.Version) string {
	return "Release " + version.TagName()
}

// ExtractNotes captures the lines after the heading for version up to the
// next version heading. ok is false only when the heading is missing; a
// heading with an empty body yields "".
func ExtractNotes(content string, version *domain.Version) (string, bool) {
	heading := versionHeading(version)
	var captured []string
	capturing := false
	found := false
	for _, line := range strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n") {
		if capturing {
			if anyVersionHeading.MatchString(line) {
				break
			}
			captured = append(captured, line)
			continue
		}
		if heading.MatchString(line) {
			capturing = true
			found = true
		}
	}
	return strings.TrimSpace(strings.Join(captured, "\n")), found
}
