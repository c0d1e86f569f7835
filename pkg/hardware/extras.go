package hardware

import "strings"

var memory128K = []string{
	"zx128", "zx128+2", "zx128+2b", "zx128+3",
	"pentagon128", "pentagon512", "pentagon1024",
	"scorpion1024",
}

// extraTags is the fixed rendering order of the extras atom.
var extraTags = []struct {
	Tag   string
	Flags []string
}{
	{"GS", []string{"gs"}},
	{"ULAPlus", []string{"ulaplus"}},
	{"KJ8b", []string{"kempston8b"}},
	{"128K", memory128K},
	{"+D", []string{"opd"}},
	{"GMX", []string{"gmx"}},
	{"TS", []string{"ts"}},
	{"KM", []string{"kempstonmouse"}},
}

// Extras returns the short tags for the add-on hardware a release needs,
// e.g. ["GS", "128K"]. It is independent of platform classification.
func Extras(flags []string) []string {
	set := toSet(flags)

	var tags []string
	for _, e := range extraTags {
		for _, f := range e.Flags {
			if _, ok := set[f]; ok {
				tags = append(tags, e.Tag)
				break
			}
		}
	}
	return tags
}

// ExtrasAtom renders Extras as "(GS, 128K)", or "" when there are none.
func ExtrasAtom(flags []string) string {
	tags := Extras(flags)
	if len(tags) == 0 {
		return ""
	}
	return "(" + strings.Join(tags, ", ") + ")"
}
