package fileutils

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	invalidChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	spaceRuns    = regexp.MustCompile(`\s+`)
)

// SanitizeForFilename removes characters that are not safe in a path segment,
// collapses whitespace and caps the result at maxLen runes. A maxLen of zero
// or less disables the cap.
func SanitizeForFilename(name string, maxLen int) string {
	name = invalidChars.ReplaceAllString(name, "")
	name = spaceRuns.ReplaceAllString(name, " ")

	// Windows doesn't like trailing dots
	name = strings.Trim(name, " .")

	if maxLen > 0 && utf8.RuneCountInString(name) > maxLen {
		name = string([]rune(name)[:maxLen])
		name = strings.Trim(name, " .")
	}

	return name
}

// SplitNames splits a list of names by comma and semicolon, trims each name
// and drops empty ones. The catalog stores publishers and languages this way.
func SplitNames(s string) []string {
	if s == "" {
		return nil
	}

	var parts []string
	for _, segment := range strings.Split(s, ";") {
		for _, part := range strings.Split(segment, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				parts = append(parts, trimmed)
			}
		}
	}
	return parts
}

// SplitExt splits a filename into its stem and lowercase extension without
// the dot. Names without an extension return an empty extension.
func SplitExt(name string) (string, string) {
	idx := strings.LastIndexByte(name, '.')
	if idx <= 0 || idx == len(name)-1 {
		return name, ""
	}
	return name[:idx], strings.ToLower(name[idx+1:])
}
