package domain

// Project is the Python distribution metadata read from pyproject.toml.

type Project struct {
	Name    string
	Version string
	// VersionVariables are semantic-release "path:variable" entries.
	VersionVariables []string
	ChangelogFile    string
	Taxonomy         CommitTaxonomy
	RuffLineLength   int
	RuffTarget       string
}
