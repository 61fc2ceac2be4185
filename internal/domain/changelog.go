package domain

import "time"

// ChangelogEntry is a single bullet in a changelog group.
type ChangelogEntry struct {
	Scope     string
	Subject   string
	ShortHash string
}

// ChangelogGroup collects entries under one heading.
type ChangelogGroup struct {
	Title   string
	Entries []ChangelogEntry
}

// ChangelogSection is the block prepended to the changelog for a release.
type ChangelogSection struct {
	Version *Version
	Date    time.Time
	Groups  []ChangelogGroup
}

// IsEmpty reports whether the section has no entries at all.
func (s *ChangelogSection) IsEmpty() bool {
	for _, g := range s.Groups {
		if len(g.Entries) > 0 {
			return false
		}
	}
	return true
}
