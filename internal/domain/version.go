package domain

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// versionPattern is the MAJOR.MINOR.PATCH[-prerelease] shape accepted for release versions.
var versionPattern = regexp.MustCompile(`^v?\d+\.\d+\.\d+(-[0-9A-Za-z.-]+)?$`)

// Version wraps semver.Version for additional methods.
type Version struct {
	*semver.Version
}

// NewVersion creates a new Version from a string.
func NewVersion(s string) (*Version, error) {
	v, err := semver.NewVersion(strings.TrimSpace(s))
	if err != nil {
		return nil, err
	}
	return &Version{v}, nil
}

// ValidateVersionString checks that s looks like a release version.
func ValidateVersionString(s string) error {
	if s == "" {
		return fmt.Errorf("version cannot be empty")
	}
	if len(s) > 100 {
		return fmt.Errorf("version too long: maximum 100 characters")
	}
	if !versionPattern.MatchString(s) {
		return fmt.Errorf("invalid version format: %s (expected MAJOR.MINOR.PATCH[-prerelease])", s)
	}
	return nil
}

// BumpMajor increments the major version.
func (v *Version) BumpMajor() *Version {
	newVer := v.IncMajor()
	return &Version{&newVer}
}

// BumpMinor increments the minor version.
func (v *Version) BumpMinor() *Version {
	newVer := v.IncMinor()
	return &Version{&newVer}
}

// BumpPatch increments the patch version.
func (v *Version) BumpPatch() *Version {
	newVer := v.IncPatch()
	return &Version{&newVer}
}

// Compare compares two versions.
func (v *Version) Compare(other *Version) int {
	return v.Version.Compare(other.Version)
}

// Equal reports whether both versions have the same precedence.
func (v *Version) Equal(other *Version) bool {
	if other == nil {
		return false
	}
	return v.Compare(other) == 0
}

// IsPrerelease reports whether the version carries a prerelease suffix.
func (v *Version) IsPrerelease() bool {
	return v.Prerelease() != ""
}

// Plain returns the version without the v prefix, as written to __version__.
func (v *Version) Plain() string {
	return v.Version.String()
}

// TagName returns the git tag used for this version.
func (v *Version) TagName() string {
	return "v" + v.Plain()
}

// String returns the version string with v prefix.
func (v *Version) String() string {
	return "v" + v.Version.String()
}
