package utils

import "strings"

// SplitList takes a comma-separated string and returns the trimmed, non-empty,
// de-duplicated items in their original order. Case is preserved.
func SplitList(input string) []string {
	if input == "" {
		return nil
	}
	var items []string
	seen := make(map[string]bool)
	for _, p := range strings.Split(input, ",") {
		item := strings.TrimSpace(p)
		if item == "" || seen[item] {
			continue
		}
		items = append(items, item)
		seen[item] = true
	}
	return items
}
