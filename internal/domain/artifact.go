package domain

import "strings"

// ArtifactKind classifies a file produced by the Python build backend.
type ArtifactKind string

const (
	ArtifactWheel ArtifactKind = "wheel"
	ArtifactSdist ArtifactKind = "sdist"
	ArtifactOther ArtifactKind = "other"
)

// Artifact is an opaque build output attached to releases and uploaded to PyPI.
type Artifact struct {
	Name string
	Path string
	Size int64
	Kind ArtifactKind
}

// ClassifyArtifact derives the kind from a file name.
func ClassifyArtifact(name string) ArtifactKind {
	switch {
	case strings.HasSuffix(name, ".whl"):
		return ArtifactWheel
	case strings.HasSuffix(name, ".tar.gz"):
		return ArtifactSdist
	default:
		return ArtifactOther
	}
}

// IsDistribution reports whether the artifact is uploadable to a package index.
func (a Artifact) IsDistribution() bool {
	return a.Kind == ArtifactWheel || a.Kind == ArtifactSdist
}
