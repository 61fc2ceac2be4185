package domain

import "fmt"

// LintFinding is one diagnostic reported by ruff.
type LintFinding struct {
	File    string
	Line    int
	Column  int
	Code    string
	Message string
}

// Location renders file:line:col.
func (f LintFinding) Location() string {
	return fmt.Sprintf("%s:%d:%d", f.File, f.Line, f.Column)
}

// LintCheck is the outcome of one ruff invocation.
type LintCheck struct {
	Name     string
	ExitCode int
	Findings []LintFinding
	// Unformatted lists files ruff format would rewrite.
	Unformatted []string
	Output      string
}

// Passed reports whether the check exited cleanly.
func (c LintCheck) Passed() bool {
	return c.ExitCode == 0
}

// LintReport aggregates the checks of a lint run.
type LintReport struct {
	Checks []LintCheck
}

// Passed reports whether every check passed.
func (r LintReport) Passed() bool {
	for _, c := range r.Checks {
		if !c.Passed() {
			return false
		}
	}
	return true
}

// FindingCount is the total number of diagnostics across checks.
func (r LintReport) FindingCount() int {
	n := 0
	for _, c := range r.Checks {
		n += len(c.Findings) + len(c.Unformatted)
	}
	return n
}
