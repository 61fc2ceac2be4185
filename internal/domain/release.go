package domain

// Release holds all metadata related to a release.

type Release struct {
	Version   *Version
	Channel   PrereleaseChannel
	Changelog string
	Notes     string
	TagName   string
	Artifacts []Artifact
	DryRun    bool
}

// IsPrerelease reports whether the GitHub release should be flagged as a prerelease.
func (r *Release) IsPrerelease() bool {
	if r.Channel.IsPrerelease() {
		return true
	}
	return r.Version != nil && r.Version.IsPrerelease()
}
