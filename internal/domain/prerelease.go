package domain

import (
	"fmt"
	"strings"
)

// PrereleaseChannel selects which prerelease token, if any, a release carries.
type PrereleaseChannel string

const (
	PrereleaseNone  PrereleaseChannel = "none"
	PrereleaseAlpha PrereleaseChannel = "alpha"
	PrereleaseBeta  PrereleaseChannel = "beta"
	PrereleaseRC    PrereleaseChannel = "rc"
)

// PrereleaseChannels lists the accepted values in the order shown to users.
var PrereleaseChannels = []PrereleaseChannel{PrereleaseNone, PrereleaseAlpha, PrereleaseBeta, PrereleaseRC}

// ParsePrereleaseChannel parses a workflow input. An empty value means none.
func ParsePrereleaseChannel(s string) (PrereleaseChannel, error) {
	normalized := PrereleaseChannel(strings.ToLower(strings.TrimSpace(s)))
	if normalized == "" {
		return PrereleaseNone, nil
	}
	for _, ch := range PrereleaseChannels {
		if ch == normalized {
			return ch, nil
		}
	}
	return "", fmt.Errorf("invalid prerelease channel %q: expected one of none, alpha, beta, rc", s)
}

// IsPrerelease reports whether the channel produces a prerelease version.
func (c PrereleaseChannel) IsPrerelease() bool {
	return c != "" && c != PrereleaseNone
}

// Token returns the prerelease token passed to semantic-release, empty for none.
func (c PrereleaseChannel) Token() string {
	if !c.IsPrerelease() {
		return ""
	}
	return string(c)
}
