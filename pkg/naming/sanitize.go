// Package naming resolves the archive filename of a catalog file. A name is
// composed of independent atoms (title, version, year, publisher, languages,
// hardware, media part, public domain marker) and a trailing dump flag.
package naming

import (
	"github.com/gosimple/unidecode"
	"github.com/zxarchive/zxmirror/pkg/fileutils"
	"github.com/zxarchive/zxmirror/pkg/sortname"
)

// Sanitize transliterates raw to ASCII and removes characters that are not
// allowed in a path segment. maxLen caps the result in runes (0 disables it).
func Sanitize(raw string, maxLen int) string {
	return fileutils.SanitizeForFilename(unidecode.Unidecode(raw), maxLen)
}

// SanitizeTitle is Sanitize followed by leading-article transposition. It
// produces both the title atom and the product folder name.
func SanitizeTitle(raw string, maxLen int) string {
	return sortname.ForTitle(Sanitize(raw, maxLen))
}
