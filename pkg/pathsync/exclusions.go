package pathsync

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// exclusion is one pre-analyzed pattern.
type exclusion struct {
	pattern       string // lowercased, forward slashes, trailing "/" stripped
	literal       bool   // no glob meta characters
	matchBasename bool   // pattern has no "/" and applies to the entry name at any depth
	subtree       bool   // pattern ended in "/" and also excludes everything below it
}

// exclusionSet holds the compiled patterns of one kind (files or dirs).
// Matching is case-insensitive so a pattern behaves the same on every OS.
type exclusionSet struct {
	basenameLiterals map[string]struct{}
	pathLiterals     map[string]struct{}
	globs            []exclusion
	subtrees         []exclusion
}

// ValidateExclusions reports the first pattern doublestar cannot parse.
func ValidateExclusions(patterns []string) error {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(normalizeExclusionPattern(p)) {
			return fmt.Errorf("invalid exclusion pattern: %q", p)
		}
	}
	return nil
}

// makeExclusionSet analyzes the patterns. Patterns are expected to be valid;
// see ValidateExclusions.
func makeExclusionSet(patterns []string) exclusionSet {
	set := exclusionSet{
		basenameLiterals: make(map[string]struct{}),
		pathLiterals:     make(map[string]struct{}),
	}
	for _, raw := range patterns {
		p := normalizeExclusionPattern(raw)
		if p == "" {
			continue
		}
		ex := exclusion{pattern: p}
		if strings.HasSuffix(p, "/") {
			ex.pattern = strings.TrimSuffix(p, "/")
			ex.subtree = true
		}
		ex.literal = !strings.ContainsAny(ex.pattern, "*?[]{}\\")
		// Like .gitignore: "node_modules" matches at any depth, "docs/a.txt" only there.
		ex.matchBasename = !strings.Contains(ex.pattern, "/")

		switch {
		case ex.subtree:
			set.subtrees = append(set.subtrees, ex)
		case ex.literal && ex.matchBasename:
			set.basenameLiterals[ex.pattern] = struct{}{}
		case ex.literal:
			set.pathLiterals[ex.pattern] = struct{}{}
		default:
			set.globs = append(set.globs, ex)
		}
	}
	return set
}

func (es *exclusionSet) empty() bool {
	return len(es.basenameLiterals) == 0 && len(es.pathLiterals) == 0 && len(es.globs) == 0 && len(es.subtrees) == 0
}

// matches checks a normalized relative path key and its basename.
func (es *exclusionSet) matches(relPathKey, basename string) bool {
	if es.empty() {
		return false
	}
	key := normalizeExclusionPattern(relPathKey)
	base := normalizeExclusionPattern(basename)

	if _, ok := es.pathLiterals[key]; ok {
		return true
	}
	if _, ok := es.basenameLiterals[base]; ok {
		return true
	}
	for _, ex := range es.globs {
		target := key
		if ex.matchBasename {
			target = base
		}
		if ok, _ := doublestar.Match(ex.pattern, target); ok {
			return true
		}
	}
	for _, ex := range es.subtrees {
		if ex.matchBasename {
			if ok, _ := doublestar.Match(ex.pattern, base); ok {
				return true
			}
			continue
		}
		// "build/**" matches "build" and everything below it, but not "build-tools".
		if ok, _ := doublestar.Match(ex.pattern+"/**", key); ok {
			return true
		}
	}
	return false
}

// exclusions bundles the file and directory pattern sets of a plan.
type exclusions struct {
	files exclusionSet
	dirs  exclusionSet
}

func newExclusions(files, dirs []string) *exclusions {
	return &exclusions{files: makeExclusionSet(files), dirs: makeExclusionSet(dirs)}
}

func (e *exclusions) isExcluded(relPathKey, basename string, isDir bool) bool {
	if isDir {
		return e.dirs.matches(relPathKey, basename)
	}
	return e.files.matches(relPathKey, basename)
}

// normalizeExclusionPattern converts a path or pattern into a standardized,
// case-insensitive key format (forward slashes, lowercase).
func normalizeExclusionPattern(p string) string {
	return strings.ToLower(filepath.ToSlash(strings.TrimSpace(p)))
}
