// Package htmlsanitize cleans text imported from CSV files before it is
// stored. Names and identifiers become plain text; project descriptions keep
// a safe subset of HTML.
package htmlsanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strict = bluemonday.StrictPolicy()
	rich   = bluemonday.UGCPolicy()
)

// PlainText removes all markup from s and returns it unescaped and trimmed.
func PlainText(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}

// Description returns s with unsafe elements and attributes removed.
// Plain text passes through unchanged.
func Description(s string) string {
	s = strings.TrimSpace(s)
	if IsPlainText(s) {
		return s
	}
	return strings.TrimSpace(rich.Sanitize(s))
}

// IsPlainText reports whether s looks like it contains no tags.
func IsPlainText(s string) bool {
	return !strings.Contains(s, "<") || !strings.Contains(s, ">")
}
