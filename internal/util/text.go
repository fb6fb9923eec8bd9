package util

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	reSpaces   = regexp.MustCompile(`\s+`)
	reFileName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
)

// NormalizeSpaces folds compatibility characters (full-width letters,
// ligatures) and collapses runs of whitespace.
func NormalizeSpaces(input string) string {
	s := norm.NFKC.String(input)
	return strings.TrimSpace(reSpaces.ReplaceAllString(s, " "))
}

// NormalizeKey is the form keyword tables are matched against.
func NormalizeKey(input string) string {
	return strings.ToLower(NormalizeSpaces(input))
}

func ContainsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

func SanitizeFileName(input string, max int) string {
	out := strings.Trim(reFileName.ReplaceAllString(input, "_"), "_")
	if out == "" {
		out = "untitled"
	}
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out
}

func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
