package usecase

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"strings"
	"text/template"

	"github.com/onvifscout/scout-release/internal/domain"
)

// PrepareReleaseBodyUseCase renders the GitHub release description.
type PrepareReleaseBodyUseCase struct {
	PackageName string
}

// markdownSafe lists escapes undone on headings and list items.
var markdownSafe = map[string]string{
	"&#34;": "\"",
	"&#39;": "'",
	"&amp;": "&",
}

// sanitizeNotes HTML-escapes notes while keeping markdown structure.
// Angle brackets stay escaped.
func (uc *PrepareReleaseBodyUseCase) sanitizeNotes(notes string) string {
	if notes == "" {
		return ""
	}
	lines := strings.Split(html.EscapeString(notes), "\n")
	for i, line := range lines {
		if after, ok := strings.CutPrefix(line, "&gt; "); ok {
			lines[i] = "> " + after
			continue
		}
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") || strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* ") {
			for escaped, original := range markdownSafe {
				lines[i] = strings.ReplaceAll(lines[i], escaped, original)
			}
		}
	}
	return strings.Join(lines, "\n")
}

// Execute renders the release body for release.
func (uc *PrepareReleaseBodyUseCase) Execute(_ context.Context, release *domain.Release) (string, error) {
	if release == nil {
		return "", fmt.Errorf("release cannot be nil")
	}
	if release.Version == nil {
		return "", fmt.Errorf("release version cannot be nil")
	}
	notes := release.Notes
	if strings.TrimSpace(notes) == "" {
		notes = DefaultReleaseNotes(release.Version)
	}
	pkg := uc.PackageName
	if pkg == "" {
		pkg = "onvifscout"
	}
	data := struct {
		Version    string
		Plain      string
		Package    string
		Notes      string
		Prerelease bool
	}{
		Version:    html.EscapeString(release.Version.TagName()),
		Plain:      html.EscapeString(release.Version.Plain()),
		Package:    html.EscapeString(pkg),
		Notes:      uc.sanitizeNotes(notes),
		Prerelease: release.IsPrerelease(),
	}
	tmpl, err := template.New("release-body").Option("missingkey=error").Parse(releaseBodyTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse release body template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute release body template: %w", err)
	}
	output := buf.String()
	lower := strings.ToLower(output)
	if strings.Contains(lower, "<script") ||
		strings.Contains(lower, "javascript:") ||
		strings.Contains(output, "{{") || strings.Contains(output, "}}") {
		return "", fmt.Errorf("potential injection detected in release body output")
	}
	return output, nil
}

const releaseBodyTemplate = `{{.Notes}}

---

{{if .Prerelease}}This is a **prerelease**. Install it with ` + "`pip install --pre {{.Package}}=={{.Plain}}`" + `{{else}}Install with ` + "`pip install {{.Package}}=={{.Plain}}`" + `{{end}}
`
