package service

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	validTagPattern       = regexp.MustCompile(`^[a-zA-Z0-9._/\-]+$`)
	validVersionPattern   = regexp.MustCompile(`^v?\d+\.\d+\.\d+(-[a-zA-Z0-9.-]+)?(\+[a-zA-Z0-9.-]+)?$`)
	validPrereleaseToken  = regexp.MustCompile(`^[a-z][a-z0-9]*$`)
	validSubcommandTokens = map[string]bool{
		"changelog": true,
		"version":   true,
		"publish":   true,
	}
)

// sanitizeTag validates a git tag to prevent command injection.
func sanitizeTag(tag string) error {
	if tag == "" {
		return nil
	}
	if !validTagPattern.MatchString(tag) {
		return fmt.Errorf("invalid tag format: %s", tag)
	}
	if strings.Contains(tag, "..") {
		return fmt.Errorf("invalid tag: contains directory traversal")
	}
	if len(tag) > 255 {
		return fmt.Errorf("tag too long: maximum 255 characters")
	}
	return nil
}

// sanitizeVersion validates a version string returned by or passed to a tool.
func sanitizeVersion(version string) error {
	if version == "" {
		return fmt.Errorf("version cannot be empty")
	}
	if len(version) > 100 {
		return fmt.Errorf("version too long: maximum 100 characters")
	}
	if !validVersionPattern.MatchString(version) {
		return fmt.Errorf("invalid version format: %s", version)
	}
	return nil
}

// sanitizePath rejects paths that could be read as flags or escape the
// working directory.
func sanitizePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path cannot be empty")
	}
	if strings.HasPrefix(path, "-") {
		return "", fmt.Errorf("invalid path %q: must not start with '-'", path)
	}
	clean := filepath.Clean(path)
	if filepath.IsAbs(clean) {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get current directory: %w", err)
		}
		rel, err := filepath.Rel(cwd, clean)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
			return "", fmt.Errorf("path traversal detected: %s must be within project directory", path)
		}
		return clean, nil
	}
	if clean == ".." || strings.HasPrefix(clean, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("path traversal detected: %s must be within project directory", path)
	}
	return clean, nil
}

func sanitizePaths(paths []string) ([]string, error) {
	if len(paths) == 0 {
		return []string{"."}, nil
	}
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		clean, err := sanitizePath(p)
		if err != nil {
			return nil, err
		}
		out = append(out, clean)
	}
	return out, nil
}

// sanitizeURL accepts only http(s) URLs without whitespace.
func sanitizeURL(raw string) error {
	if raw == "" {
		return nil
	}
	if strings.ContainsAny(raw, " \t\n") {
		return fmt.Errorf("invalid url: contains whitespace")
	}
	if !strings.HasPrefix(raw, "https://") && !strings.HasPrefix(raw, "http://") {
		return fmt.Errorf("invalid url %q: must be http or https", raw)
	}
	return nil
}
