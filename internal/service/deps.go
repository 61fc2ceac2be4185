package service

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement defines an external tool the release pipeline relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a requirement.
type Status struct {
	Requirement
	Available bool
	Detail    string
}

// DefaultRequirements lists the tools used by the release, lint and publish
// pipelines.
func DefaultRequirements(python string) []Requirement {
	if python == "" {
		python = "python"
	}
	return []Requirement{
		{Name: "semantic-release", Command: semanticReleaseBinary, Description: "computes the next version"},
		{Name: "ruff", Command: ruffBinary, Description: "lint and format checks"},
		{Name: "python", Command: python, Description: "builds sdist and wheel via python -m build"},
		{Name: "twine", Command: twineBinary, Description: "checks and uploads distributions"},
		{Name: "git", Command: "git", Description: "inspecting the checkout", Optional: true},
	}
}

// CheckBinaries evaluates the requirements against PATH.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		req.Command = strings.TrimSpace(req.Command)
		status := Status{Requirement: req}
		switch {
		case req.Command == "":
			status.Detail = "command not configured"
		default:
			path, err := exec.LookPath(req.Command)
			if err != nil {
				status.Detail = fmt.Sprintf("binary %q not found", req.Command)
			} else {
				status.Available = true
				status.Detail = path
			}
		}
		results = append(results, status)
	}
	return results
}

// MissingRequired returns the names of unavailable non-optional tools.
func MissingRequired(statuses []Status) []string {
	var missing []string
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			missing = append(missing, s.Name)
		}
	}
	return missing
}
