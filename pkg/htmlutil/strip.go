// Package htmlutil turns the markup-laden text fields of the remote catalog
// into plain single-line strings.
package htmlutil

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// tagPattern matches HTML tags including self-closing tags.
var tagPattern = regexp.MustCompile(`<[^>]*>`)

// spacePattern matches any run of whitespace, newlines included.
var spacePattern = regexp.MustCompile(`\s+`)

// CleanText removes HTML tags, decodes entities (named and numeric) and
// collapses whitespace to single spaces. Line-breaking tags become spaces so
// words on either side stay apart.
func CleanText(s string) string {
	if s == "" {
		return ""
	}

	result := s
	for _, tag := range []string{"<br>", "<br/>", "<br />", "</p>", "</div>", "</li>"} {
		result = strings.ReplaceAll(result, tag, " ")
		result = strings.ReplaceAll(result, strings.ToUpper(tag), " ")
	}

	result = tagPattern.ReplaceAllString(result, "")
	result = html.UnescapeString(result)
	result = strings.ReplaceAll(result, " ", " ")
	result = spacePattern.ReplaceAllString(result, " ")

	return strings.TrimSpace(result)
}
