package store

import (
	"path/filepath"
	"strings"
)

// MatchGlob exposes the store's glob grammar to other components (e.g. the
// ingestion coordinator's lite-mode pattern set) so they stay consistent
// with list_paths/neighbors/rank_by_chaos scoping.
func MatchGlob(pattern, path string) bool { return matchGlob(pattern, path) }

// matchGlob implements spec §4.3's glob grammar: `*` (any run of non-`/`),
// `**` (any run including `/`), `?` (any single non-`/`), and `[...]`
// character classes. An empty pattern matches everything. A pattern without
// `**` that does not match the whole path is also tried against the path's
// base name, so `*.go` matches `src/a.go`.
func matchGlob(pattern, path string) bool {
	if pattern == "" {
		return true
	}
	path = filepath.ToSlash(path)

	if strings.Contains(pattern, "**") {
		return matchDoublestar(pattern, path)
	}

	matched, _ := filepath.Match(pattern, path)
	if matched {
		return true
	}
	matched, _ = filepath.Match(pattern, filepath.Base(path))
	return matched
}

// matchDoublestar handles patterns containing `**`.
func matchDoublestar(pattern, path string) bool {
	parts := strings.Split(pattern, "**")
	if len(parts) == 1 {
		matched, _ := filepath.Match(pattern, path)
		return matched
	}

	if len(parts) == 2 {
		prefix := strings.TrimSuffix(parts[0], "/")
		suffix := strings.TrimPrefix(parts[1], "/")

		if prefix != "" {
			if !strings.HasPrefix(path, prefix+"/") && path != prefix {
				return false
			}
			path = strings.TrimPrefix(path, prefix+"/")
		}

		if suffix != "" {
			return matchSuffix(suffix, path)
		}
		return true
	}

	pathIdx := 0
	for i, part := range parts {
		part = strings.Trim(part, "/")
		if part == "" {
			continue
		}
		idx := strings.Index(path[pathIdx:], part)
		if idx == -1 {
			return false
		}
		if i == 0 && !strings.HasPrefix(pattern, "**") && idx != 0 {
			return false
		}
		pathIdx += idx + len(part)
	}
	if !strings.HasSuffix(pattern, "**") && pathIdx != len(path) {
		return false
	}
	return true
}

func matchSuffix(suffix, path string) bool {
	if strings.ContainsAny(suffix, "*?[") {
		parts := strings.Split(path, "/")
		for i := range parts {
			subpath := strings.Join(parts[i:], "/")
			matched, _ := filepath.Match(suffix, subpath)
			if matched {
				return true
			}
		}
		return false
	}
	return strings.HasSuffix(path, suffix) || strings.Contains(path, suffix+"/") || path == suffix
}
