package service

import "time"

// Timeout constants for external tool invocations
const (
	// DefaultSemanticReleaseTimeout is the timeout for semantic-release
	DefaultSemanticReleaseTimeout = 2 * time.Minute
	// DefaultRuffTimeout is the timeout for ruff check / ruff format
	DefaultRuffTimeout = 2 * time.Minute
	// DefaultBuildTimeout is the timeout for python -m build
	DefaultBuildTimeout = 10 * time.Minute
	// DefaultTwineTimeout is the timeout for twine check / upload
	DefaultTwineTimeout = 10 * time.Minute
	// DefaultPyPITimeout bounds a single PyPI JSON API request
	DefaultPyPITimeout = 15 * time.Second
)

const githubActionsTrue = "true"

// Tool binary names
const (
	semanticReleaseBinary = "semantic-release"
	ruffBinary            = "ruff"
	twineBinary           = "twine"
)
