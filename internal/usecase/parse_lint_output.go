package usecase

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/onvifscout/scout-release/internal/domain"
	"github.com/onvifscout/scout-release/internal/service"
)

const (
	LintCheckName   = "ruff check"
	FormatCheckName = "ruff format --check"
)

var (
	conciseFinding = regexp.MustCompile(`^(.+?):(\d+):(\d+): (\S+?):? (?:\[\*\] )?(.*)$`)
	wouldReformat  = regexp.MustCompile(`^Would reformat: (.+)$`)
)

// ParseLintOutput parses `ruff check --output-format=concise` lines.
// Summary lines such as "Found 2 errors." are ignored.
func ParseLintOutput(output string) []domain.LintFinding {
	var findings []domain.LintFinding
	for _, line := range strings.Split(output, "\n") {
		m := conciseFinding.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m == nil {
			continue
		}
		lineNo, _ := strconv.Atoi(m[2])
		col, _ := strconv.Atoi(m[3])
		findings = append(findings, domain.LintFinding{
			File:    m[1],
			Line:    lineNo,
			Column:  col,
			Code:    m[4],
			Message: strings.TrimSpace(m[5]),
		})
	}
	return findings
}

// ParseFormatOutput returns the files `ruff format --check` would rewrite.
func ParseFormatOutput(output string) []string {
	var files []string
	for _, line := range strings.Split(output, "\n") {
		if m := wouldReformat.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			files = append(files, m[1])
		}
	}
	return files
}

// BuildLintCheck turns a ruff result into a LintCheck.
func BuildLintCheck(name string, result service.Result) domain.LintCheck {
	output := strings.TrimSpace(result.Stdout + "\n" + result.Stderr)
	check := domain.LintCheck{Name: name, ExitCode: result.ExitCode, Output: output}
	switch name {
	case FormatCheckName:
		check.Unformatted = ParseFormatOutput(output)
	default:
		check.Findings = ParseLintOutput(result.Stdout)
	}
	return check
}
