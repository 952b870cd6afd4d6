// Package strings normalizes string lists read from configuration and seed
// files.
package strings

import (
	"strings"
)

// DedupeAndTrim trims each element and drops empties and repeats, keeping
// first-seen order.
func DedupeAndTrim(values []string) []string {
	return dedupe(values, strings.TrimSpace)
}

// DedupeAndTrimUpper is DedupeAndTrim with upper-casing, for role names.
func DedupeAndTrimUpper(values []string) []string {
	return dedupe(values, func(v string) string {
		return strings.ToUpper(strings.TrimSpace(v))
	})
}

// SplitList splits a comma-separated list and normalizes it with
// DedupeAndTrim. An empty input yields nil.
func SplitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return DedupeAndTrim(strings.Split(raw, ","))
}

func dedupe(values []string, normalize func(string) string) []string {
	if len(values) == 0 {
		return values
	}
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		v = normalize(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}
