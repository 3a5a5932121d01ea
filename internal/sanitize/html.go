// Package sanitize strips markup from free-text fields before they are
// forwarded to the backend.
package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// StrictPolicy removes all HTML tags and attributes.
var StrictPolicy = bluemonday.StrictPolicy()

// plain strips markup and undoes the entity escaping bluemonday applies to
// the remaining text, so the backend stores what the user typed.
func plain(input string) string {
	return html.UnescapeString(StrictPolicy.Sanitize(input))
}

// Text strips all HTML and surrounding whitespace.
// Use for: names, allergy labels, reasons, short descriptions.
func Text(input string) string {
	return strings.TrimSpace(plain(input))
}

// Notes strips HTML from multi-line clinical or incident notes. Line breaks
// are kept; trailing whitespace on each line is dropped.
func Notes(input string) string {
	lines := strings.Split(plain(input), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t\r")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
