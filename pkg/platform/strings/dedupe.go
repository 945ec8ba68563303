// Package strings provides string helpers for configured name lists.
package strings

import (
	"strings"
)

// DedupeAndTrim trims each element and drops blanks and duplicates.
// Comparison is case-insensitive and the first spelling seen wins. Order is preserved.
//
// Example:
//
//	DedupeAndTrim([]string{"  Pending ", "Closed", "pending", "", "  "})
//	// Returns: []string{"Pending", "Closed"}
func DedupeAndTrim(values []string) []string {
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
		key := strings.ToLower(trimmed)
		if _, ok := seen[key]; !ok {
			seen[key] = struct{}{}
			result = append(result, trimmed)
		}
	}

	return result
}

// SplitList splits a comma separated setting into a cleaned list.
func SplitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return DedupeAndTrim(strings.Split(raw, ","))
}
