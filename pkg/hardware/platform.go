// Package hardware classifies the remote hardware flags of a release into
// archive platform folders and short filename tags.
package hardware

const DefaultPlatform = "ZX Spectrum"

type platformGroup struct {
	Name  string
	Flags []string
}

// platformGroups is ordered by priority. The first group is also the default
// when no flag matches.
var platformGroups = []platformGroup{
	{"ZX Spectrum", []string{
		"zx48", "zx16", "zx128", "zx128+2", "zx128+2b", "zx128+3",
		"timex2048", "timex2068", "pentagon128", "pentagon512", "pentagon1024", "pentagon2666",
		"profi", "scorpion", "scorpion1024", "byte", "zxmphoenix", "zxuno",
		"alf", "didaktik80",
	}},
	{"Sprinter", []string{"sprinter"}},
	{"ZX Spectrum Next", []string{"zxnext"}},
	{"ATM", []string{"atm", "atm2", "baseconf"}},
	{"TS-Config", []string{"tsconf"}},
	{"ZX80", []string{"zx80"}},
	{"ZX81", []string{"zx8116", "zx811", "zx812", "zx8132", "zx8164", "lambda8300"}},
	{"Sinclair QL", []string{"sinclairql"}},
	{"Sam Coupe", []string{"samcoupe"}},
	{"Element ZX", []string{"elementzxmb"}},
}

// Platforms returns every platform group the flags intersect, in priority
// order. A release with no recognised machine flag lands in DefaultPlatform.
func Platforms(flags []string) []string {
	set := toSet(flags)

	var out []string
	for _, g := range platformGroups {
		for _, f := range g.Flags {
			if _, ok := set[f]; ok {
				out = append(out, g.Name)
				break
			}
		}
	}
	if len(out) == 0 {
		return []string{DefaultPlatform}
	}
	return out
}

// PrimaryPlatform returns the highest-priority platform for flags.
func PrimaryPlatform(flags []string) string {
	return Platforms(flags)[0]
}

// PlatformNames lists all known platform folders in priority order.
func PlatformNames() []string {
	names := make([]string, len(platformGroups))
	for i, g := range platformGroups {
		names[i] = g.Name
	}
	return names
}

func toSet(flags []string) map[string]struct{} {
	set := make(map[string]struct{}, len(flags))
	for _, f := range flags {
		set[f] = struct{}{}
	}
	return set
}
