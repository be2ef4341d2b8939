package utils

import (
	"regexp"
	"strings"
)

var nonAlphanumeric = regexp.MustCompile("[^a-z0-9]+")

// Slugify lowercases s and joins its alphanumeric runs with hyphens. Returns fallback when
// nothing is left.
func Slugify(s, fallback string) string {
	s = nonAlphanumeric.ReplaceAllString(strings.ToLower(s), "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return fallback
	}
	return s
}
