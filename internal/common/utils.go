package common

import "strings"

// SplitList splits a comma separated list, trimming blanks and dropping empty items.
// It returns nil for an empty or all-blank input.
func SplitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
