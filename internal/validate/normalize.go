// Package validate provides input normalization and request struct
// validation shared by the API handlers and the domain packages.
package validate

import (
	"sort"
	"strings"
)

// Text trims and lowercases s. It is the canonical form used for every tag,
// restaurant and query comparison.
func Text(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Tags returns the normalized, de-duplicated, sorted form of tags.
// Blank entries are dropped. The result is never nil.
func Tags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		n := Text(t)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Set returns the normalized tags as a lookup set.
func Set(tags []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		if n := Text(t); n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}

// Intersect returns the sorted members of a that are also in b.
func Intersect(a []string, b map[string]struct{}) []string {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	var out []string
	for _, t := range a {
		if _, ok := b[t]; ok {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

// TrimmedOrNil trims s and returns nil when nothing remains.
func TrimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
