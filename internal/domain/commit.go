package domain

import (
	"regexp"
	"strings"
)

var conventionalHeader = regexp.MustCompile(`^(\w+)(?:\(([^)]*)\))?(!)?:\s*(.+)$`)

// Commit is a commit as read from git history.
type Commit struct {
	Hash    string
	Message string
}

// ShortHash returns the abbreviated commit hash.
func (c Commit) ShortHash() string {
	if len(c.Hash) > 7 {
		return c.Hash[:7]
	}
	return c.Hash
}

// ConventionalCommit is a commit message split along conventional-commit lines.
// Messages that do not follow the convention keep an empty Type.
type ConventionalCommit struct {
	Hash     string
	Type     string
	Scope    string
	Subject  string
	Body     string
	Breaking bool
}

// ParseConventionalCommit parses the message of c.
func ParseConventionalCommit(c Commit) ConventionalCommit {
	msg := strings.TrimSpace(strings.ReplaceAll(c.Message, "\r\n", "\n"))
	header, body, _ := strings.Cut(msg, "\n")
	body = strings.TrimSpace(body)
	parsed := ConventionalCommit{
		Hash:    c.Hash,
		Subject: strings.TrimSpace(header),
		Body:    body,
	}
	m := conventionalHeader.FindStringSubmatch(strings.TrimSpace(header))
	if m != nil {
		parsed.Type = strings.ToLower(m[1])
		parsed.Scope = strings.TrimSpace(m[2])
		parsed.Breaking = m[3] == "!"
		parsed.Subject = strings.TrimSpace(m[4])
	}
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "BREAKING CHANGE:") || strings.HasPrefix(line, "BREAKING-CHANGE:") {
			parsed.Breaking = true
			break
		}
	}
	return parsed
}

// CommitTaxonomy is the commit-tag configuration shared with semantic-release.
type CommitTaxonomy struct {
	AllowedTags []string
	MinorTags   []string
	PatchTags   []string
	// Titles maps a tag to its changelog group heading.
	Titles map[string]string
}

// DefaultCommitTaxonomy mirrors the conventional parser defaults of semantic-release.
func DefaultCommitTaxonomy() CommitTaxonomy {
	return CommitTaxonomy{
		AllowedTags: []string{"feat", "fix", "perf", "docs", "refactor", "style", "build", "ci", "test", "chore"},
		MinorTags:   []string{"feat"},
		PatchTags:   []string{"fix", "perf"},
		Titles: map[string]string{
			"feat":     "Features",
			"fix":      "Bug Fixes",
			"perf":     "Performance",
			"docs":     "Documentation",
			"refactor": "Refactoring",
			"style":    "Style",
			"build":    "Build System",
			"ci":       "Continuous Integration",
			"test":     "Testing",
			"chore":    "Chores",
		},
	}
}

// Allows reports whether tag belongs to the taxonomy.
func (t CommitTaxonomy) Allows(tag string) bool {
	for _, allowed := range t.AllowedTags {
		if allowed == tag {
			return true
		}
	}
	return false
}

// Title returns the changelog heading for tag.
func (t CommitTaxonomy) Title(tag string) string {
	if title, ok := t.Titles[tag]; ok && title != "" {
		return title
	}
	if tag == "" {
		return "Other"
	}
	return strings.ToUpper(tag[:1]) + tag[1:]
}
