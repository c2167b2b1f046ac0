// Package query implements C7, the read-only query surface over C3's
// index: substring/regex search, snippet verification, and clustering
// (spec §4.7).
package query

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/sigtrace/sigtrace/internal/store"
)

// metacharPattern sniffs for regex metacharacters in a raw query string, to
// decide between literal and regex interpretation (spec §4.7).
var metacharPattern = regexp.MustCompile(`[.*+?()|\[\]{}^$\\]`)

// Hit is one matching line, with two lines of context on either side.
type Hit struct {
	Path    string   `json:"path"`
	Line    int      `json:"line"`
	Text    string   `json:"text"`
	Context []string `json:"context"`
}

// SearchResult is the outcome of search_substring.
type SearchResult struct {
	Hits         []Hit `json:"hits"`
	TotalMatches int   `json:"total_matches"`
}

// Surface is C7: a read-only facade over a Store.
type Surface struct {
	store store.Store
}

// NewSurface builds a query Surface over s.
func NewSurface(s store.Store) *Surface {
	return &Surface{store: s}
}

// SearchSubstring implements search_substring: query is interpreted as a
// regex if it contains regex metacharacters, otherwise as a literal
// substring; matching is case-insensitive unless caseSensitive is set.
// Hits carry ±2 lines of context; TotalMatches counts every match across
// every file, even beyond limit.
func (s *Surface) SearchSubstring(ctx context.Context, queryStr, fileGlob string, caseSensitive bool, limit int) (SearchResult, error) {
	matcher, err := newMatcher(queryStr, caseSensitive)
	if err != nil {
		return SearchResult{}, err
	}

	paths, err := s.store.ListPaths(ctx, fileGlob)
	if err != nil {
		return SearchResult{}, err
	}
	sort.Strings(paths)

	var result SearchResult
	for _, path := range paths {
		rec, err := s.store.GetFile(ctx, path)
		if err != nil || rec.Binary {
			continue
		}
		lines := strings.Split(string(rec.Body), "\n")
		for i, line := range lines {
			if !matcher(line) {
				continue
			}
			result.TotalMatches++
			if limit > 0 && len(result.Hits) >= limit {
				continue
			}
			start := i - 2
			if start < 0 {
				start = 0
			}
			end := i + 3
			if end > len(lines) {
				end = len(lines)
			}
			result.Hits = append(result.Hits, Hit{
				Path:    path,
				Line:    i + 1,
				Text:    line,
				Context: append([]string(nil), lines[start:end]...),
			})
		}
	}
	return result, nil
}

// newMatcher builds a line-matching predicate for queryStr, choosing regex
// or literal interpretation based on the presence of regex metacharacters.
func newMatcher(queryStr string, caseSensitive bool) (func(line string) bool, error) {
	if metacharPattern.MatchString(queryStr) {
		pattern := queryStr
		if !caseSensitive {
			pattern = "(?i)" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, err
		}
		return re.MatchString, nil
	}

	needle := queryStr
	if !caseSensitive {
		needle = strings.ToLower(needle)
	}
	return func(line string) bool {
		if !caseSensitive {
			line = strings.ToLower(line)
		}
		return strings.Contains(line, needle)
	}, nil
}
