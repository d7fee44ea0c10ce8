package configtree

import (
	"strings"

	wildcard "github.com/IGLOU-EU/go-wildcard/v2"
)

// Field paths are dotted addresses into a tree ("env.ANTHROPIC_AUTH_TOKEN").
// Changes in a tool's secondary files carry a file prefix
// ("auth.json:OPENAI_API_KEY") so one pattern list covers the whole file set.

// JoinPath appends a key to a dotted path.
func JoinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// WithFilePrefix qualifies a path with the config file it belongs to.
func WithFilePrefix(file, path string) string {
	return file + ":" + path
}

// MatchPattern reports whether a field path matches a single pattern.
// Patterns may contain wildcards anywhere ("model_providers.*",
// "*.selectedType"); a pattern without wildcards matches the path itself
// and all of its descendants ("env" matches "env.FOO" but not "environment").
func MatchPattern(path, pattern string) bool {
	if pattern == "" {
		return false
	}
	if strings.ContainsRune(pattern, '*') {
		return wildcard.Match(pattern, path)
	}
	return path == pattern || strings.HasPrefix(path, pattern+".")
}

// MatchAny reports whether a field path matches any of the patterns.
func MatchAny(path string, patterns []string) bool {
	for _, p := range patterns {
		if MatchPattern(path, p) {
			return true
		}
	}
	return false
}
