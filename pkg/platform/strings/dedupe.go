// Package strings provides string list normalization.
package strings

import (
	"strings"
)

// DedupeAndTrim trims each element, drops empties and removes duplicates,
// preserving first-seen order.
//
//	DedupeAndTrim([]string{"  foo ", "bar", "foo", "", "  "})
//	// []string{"foo", "bar"}
func DedupeAndTrim(values []string) []string {
	return DedupeFunc(values, func(s string) string { return s })
}

// DedupeFunc is DedupeAndTrim with canon applied to each trimmed element
// before comparison. The canonical form is what is returned.
//
//	DedupeFunc([]string{"https://A.example/", "https://a.example"}, CanonicalOrigin)
//	// []string{"https://a.example"}
func DedupeFunc(values []string, canon func(string) string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		c := canon(trimmed)
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		result = append(result, c)
	}
	return result
}

// CanonicalOrigin lowercases an origin and strips trailing slashes so
// "https://Shop.Example/" and "https://shop.example" compare equal.
func CanonicalOrigin(origin string) string {
	return strings.TrimRight(strings.ToLower(origin), "/")
}
