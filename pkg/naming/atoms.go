package naming

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zxarchive/zxmirror/pkg/fileutils"
	"github.com/zxarchive/zxmirror/pkg/hardware"
	"github.com/zxarchive/zxmirror/pkg/models"
)

// NameInput is everything a filename is derived from. Siblings are all files
// of the release ordered by id and must include Target.
type NameInput struct {
	Product  *models.Product
	Release  *models.Release
	Siblings []*models.File
	Target   *models.File
}

const unknownTitle = "Unknown"

func TitleAtom(in NameInput, maxLen int) string {
	title := SanitizeTitle(in.Product.Title, maxLen)
	if title == "" {
		return unknownTitle
	}
	return title
}

// VersionAtom renders "v1.1". A version that already starts with v is not
// prefixed again.
func VersionAtom(in NameInput) string {
	version := Sanitize(in.Release.Version, 0)
	if version == "" {
		return ""
	}
	if len(version) > 1 && (version[0] == 'v' || version[0] == 'V') && version[1] >= '0' && version[1] <= '9' {
		return "v" + version[1:]
	}
	return "v" + version
}

func DemoAtom(in NameInput) string {
	if in.Release.ReleaseType == models.ReleaseTypeDemoversion {
		return "(demo)"
	}
	return ""
}

func YearAtom(in NameInput) string {
	if in.Product.Year == nil || *in.Product.Year <= 0 {
		return "(19xx)"
	}
	return "(" + strconv.Itoa(*in.Product.Year) + ")"
}

// PublisherAtom prefers the release publishers over the product's and
// renders "(-)" when neither is known.
func PublisherAtom(in NameInput) string {
	publishers := renderPublishers(in.Release.Publishers)
	if publishers == "" {
		publishers = renderPublishers(in.Product.Publishers)
	}
	if publishers == "" {
		publishers = "-"
	}
	return "(" + publishers + ")"
}

func renderPublishers(list string) string {
	var names []string
	for _, name := range fileutils.SplitNames(list) {
		if s := Sanitize(name, 0); s != "" {
			names = append(names, s)
		}
	}
	return strings.Join(names, ", ")
}

// suppressedLanguageTypes carry their language in the dump flag only, unless
// the filename itself names one.
var suppressedLanguageTypes = map[string]struct{}{
	models.ReleaseTypeLocalization: {},
	models.ReleaseTypeMod:          {},
	models.ReleaseTypeAdaptation:   {},
	models.ReleaseTypeCrack:        {},
}

// derivedLanguages are the target's languages ignoring suppression: detected
// from the original filename, else the release's, else the product's.
func derivedLanguages(in NameInput) []string {
	if detected := DetectAll(in.Target.OriginalFileName); len(detected) > 0 {
		return detected
	}
	if langs := ParseLanguages(in.Release.Languages); len(langs) > 0 {
		return langs
	}
	return ParseLanguages(in.Product.Languages)
}

// Languages returns the languages rendered in the plain language atom.
func Languages(in NameInput) []string {
	return languagesFor(in, in.Target)
}

func languagesFor(in NameInput, target *models.File) []string {
	if detected := DetectAll(target.OriginalFileName); len(detected) > 0 {
		return detected
	}
	if _, ok := suppressedLanguageTypes[in.Release.ReleaseType]; ok {
		return nil
	}
	if langs := ParseLanguages(in.Release.Languages); len(langs) > 0 {
		return langs
	}
	return ParseLanguages(in.Product.Languages)
}

func renderLanguages(langs []string) string {
	return strings.Join(langs, "-")
}

func LanguageAtom(in NameInput) string {
	return languageAtomFor(in, in.Target)
}

func languageAtomFor(in NameInput, target *models.File) string {
	langs := languagesFor(in, target)
	if len(langs) == 0 {
		return ""
	}
	return "(" + renderLanguages(langs) + ")"
}

func HardwareAtom(in NameInput) string {
	return hardware.ExtrasAtom(in.Release.Hardware)
}

// MediaPartAtom numbers the target within its logical group: siblings of the
// same media class with the same language and version atoms. A side or part
// named by the filename follows the count unbracketed; groups of one render
// only the side or part, bracketed.
func MediaPartAtom(in NameInput) string {
	class := ClassifyMedia(in.Target.Type)
	lang := languageAtomFor(in, in.Target)

	var total, position int
	for _, sibling := range in.Siblings {
		if ClassifyMedia(sibling.Type) != class || languageAtomFor(in, sibling) != lang {
			continue
		}
		total++
		if sibling.ID == in.Target.ID {
			position = total
		}
	}

	side := SidePart(in.Target.OriginalFileName)
	if total <= 1 || position == 0 {
		if side == "" {
			return ""
		}
		return "(" + side + ")"
	}

	var part string
	if total < 10 {
		part = fmt.Sprintf("(%s %d of %d)", class.Label(), position, total)
	} else {
		part = fmt.Sprintf("(%s %02d of %02d)", class.Label(), position, total)
	}
	if side != "" {
		part += " " + side
	}
	return part
}

func PublicDomainAtom(in NameInput) string {
	switch in.Product.LegalStatus {
	case models.LegalStatusAllowed, models.LegalStatusAllowedZxArt:
		return "(PD)"
	}
	return ""
}

// DumpFlag renders the trailing TOSEC dump flag, e.g. "[a]", "[h2 1995 Ocean]"
// or "[tr RU]". Legal status outranks release type. duplicateIndex selects an
// alternate name for a collision; the numeral is shown only above 1.
func DumpFlag(in NameInput, duplicateIndex int) string {
	code, sub := dumpCode(in)
	if code == "" && duplicateIndex > 0 {
		code = "a"
	}
	if code == "" {
		return ""
	}

	flag := "[" + code
	if duplicateIndex > 1 {
		flag += strconv.Itoa(duplicateIndex)
	}
	if len(sub) > 0 {
		flag += " " + strings.Join(sub, " ")
	}
	return flag + "]"
}

func dumpCode(in NameInput) (string, []string) {
	switch in.Product.LegalStatus {
	case models.LegalStatusForbidden, models.LegalStatusForbiddenZxArt, models.LegalStatusInSales:
		return "p", nil
	case models.LegalStatusMIA, models.LegalStatusRecovered, models.LegalStatusUnreleased:
		return "a", nil
	}

	switch in.Release.ReleaseType {
	case models.ReleaseTypeCrack, models.ReleaseTypeMod, models.ReleaseTypeAdaptation:
		var sub []string
		if in.Release.Year != nil && *in.Release.Year > 0 {
			sub = append(sub, strconv.Itoa(*in.Release.Year))
		}
		if publishers := renderPublishers(in.Release.Publishers); publishers != "" {
			sub = append(sub, publishers)
		}
		return "h", sub
	case models.ReleaseTypeLocalization:
		langs := derivedLanguages(in)
		if len(langs) == 0 {
			return "", nil
		}
		return "tr", []string{renderLanguages(langs)}
	case models.ReleaseTypeRerelease:
		return "a", nil
	case models.ReleaseTypeMIA, models.ReleaseTypeCorrupted, models.ReleaseTypeIncomplete:
		return "b", nil
	}
	return "", nil
}
