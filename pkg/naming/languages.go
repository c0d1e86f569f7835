package naming

import (
	"regexp"
	"strings"

	"github.com/zxarchive/zxmirror/pkg/fileutils"
)

// languageCodes are the canonical two-letter codes. "by" is not one: in
// filenames it is the preposition.
var languageCodes = map[string]struct{}{
	"be": {}, "bs": {}, "ca": {}, "cs": {}, "da": {}, "de": {}, "el": {}, "en": {},
	"eo": {}, "es": {}, "eu": {}, "fi": {}, "fr": {}, "gl": {}, "hr": {}, "hu": {},
	"is": {}, "it": {}, "la": {}, "lt": {}, "lv": {}, "nl": {}, "no": {}, "pl": {},
	"pt": {}, "ro": {}, "ru": {}, "sh": {}, "sk": {}, "sl": {}, "sr": {}, "sv": {},
	"tr": {}, "ua": {}, "he": {},
}

var languageAliases = map[string]string{
	"eng": "en",
	"rus": "ru",
	"spa": "es",
	"esp": "es",
	"fra": "fr",
	"fre": "fr",
	"deu": "de",
	"ger": "de",
	"por": "pt",
	"pol": "pl",
	"ita": "it",
	"nld": "nl",
	"dut": "nl",
	"swe": "sv",
	"nor": "no",
	"dan": "da",
	"fin": "fi",
	"hun": "hu",
	"rom": "ro",
	"scr": "sh",
	"srp": "sr",
	"hrv": "hr",
	"slk": "sk",
	"slv": "sl",
	"lit": "lt",
	"lav": "lv",
	"eus": "eu",
	"cat": "ca",
	"glg": "gl",
	"ell": "el",
	"hbr": "he",
}

var (
	// creditPhrase matches credits like "tr by Vasya" or "cracked by Bill"
	// up to the next bracket. Their words are names, not languages.
	creditPhrase = regexp.MustCompile(`(?i)\b(?:tr|cr|h|t|f|hack|hacked|crack|cracked|fix|fixed|trainer)?\s*by\s+[^()\[\]]*`)
	nonAlnum     = regexp.MustCompile(`[^a-z0-9]+`)
)

// NormalizeLanguage maps a two-letter code or a known three-letter alias to
// the uppercase two-letter code.
func NormalizeLanguage(token string) (string, bool) {
	t := strings.ToLower(strings.TrimSpace(token))
	if _, ok := languageCodes[t]; ok {
		return strings.ToUpper(t), true
	}
	if code, ok := languageAliases[t]; ok {
		return strings.ToUpper(code), true
	}
	return "", false
}

// DetectAll returns the languages named in a filename, uppercase, in order of
// first appearance and without duplicates. Only whole tokens match, so
// "Crustacean" never yields RU.
func DetectAll(originalFileName string) []string {
	stem, _ := fileutils.SplitExt(originalFileName)
	stem = creditPhrase.ReplaceAllString(stem, " ")
	tokens := strings.Fields(nonAlnum.ReplaceAllString(strings.ToLower(stem), " "))

	var out []string
	seen := map[string]struct{}{}
	for _, token := range tokens {
		code, ok := NormalizeLanguage(token)
		if !ok {
			continue
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	return out
}

// ParseLanguages normalizes a stored comma-joined language list. Values that
// are not known codes are kept uppercased.
func ParseLanguages(list string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, raw := range fileutils.SplitNames(list) {
		code, ok := NormalizeLanguage(raw)
		if !ok {
			code = strings.ToUpper(Sanitize(raw, 0))
		}
		if code == "" {
			continue
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	return out
}
