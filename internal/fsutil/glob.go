package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// ExpandPatterns resolves a mix of literal paths and doublestar glob
// patterns (e.g. "flows/**/*.json") into a sorted, deduplicated list of
// files. Literal paths must exist; a glob matching nothing is an error so
// batch runs fail loudly instead of silently doing no work.
func ExpandPatterns(patterns []string) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			out = append(out, path)
		}
	}

	for _, pattern := range patterns {
		if !isGlob(pattern) {
			info, err := os.Stat(pattern)
			if err != nil {
				return nil, fmt.Errorf("input %s: %w", pattern, err)
			}
			if info.IsDir() {
				return nil, fmt.Errorf("input %s is a directory, want a file or glob", pattern)
			}
			add(pattern)
			continue
		}

		base, rest := doublestar.SplitPattern(filepath.ToSlash(pattern))
		matches, err := doublestar.Glob(os.DirFS(base), rest)
		if err != nil {
			return nil, fmt.Errorf("bad glob pattern %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("glob %s matched no files", pattern)
		}
		sort.Strings(matches)
		for _, m := range matches {
			full := filepath.Join(base, filepath.FromSlash(m))
			if info, err := os.Stat(full); err == nil && !info.IsDir() {
				add(full)
			}
		}
	}
	return out, nil
}

func isGlob(pattern string) bool {
	for _, ch := range pattern {
		switch ch {
		case '*', '?', '[', '{':
			return true
		}
	}
	return false
}
