package hardware

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlatforms(t *testing.T) {
	tests := []struct {
		name     string
		flags    []string
		expected []string
	}{
		{"no flags", nil, []string{"ZX Spectrum"}},
		{"only extras", []string{"gs", "ay"}, []string{"ZX Spectrum"}},
		{"spectrum", []string{"zx48"}, []string{"ZX Spectrum"}},
		{"next only", []string{"zxnext"}, []string{"ZX Spectrum Next"}},
		{"tsconf", []string{"tsconf", "gs"}, []string{"TS-Config"}},
		{"zx81", []string{"zx8116"}, []string{"ZX81"}},
		{"fan out keeps priority order", []string{"tsconf", "pentagon128", "atm2"}, []string{"ZX Spectrum", "ATM", "TS-Config"}},
		{"duplicate group flags", []string{"atm", "atm2", "baseconf"}, []string{"ATM"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Platforms(tt.flags))
		})
	}
}

func TestPrimaryPlatform(t *testing.T) {
	assert.Equal(t, "ZX Spectrum", PrimaryPlatform([]string{"samcoupe", "zx128"}))
	assert.Equal(t, "Sam Coupe", PrimaryPlatform([]string{"samcoupe"}))
}

func TestExtras(t *testing.T) {
	assert.Empty(t, Extras(nil))
	assert.Equal(t, []string{"128K"}, Extras([]string{"zx128", "pentagon128"}))
	assert.Equal(t, []string{"GS", "ULAPlus", "KJ8b", "128K", "+D", "GMX", "TS", "KM"},
		Extras([]string{"kempstonmouse", "ts", "gmx", "opd", "scorpion1024", "kempston8b", "ulaplus", "gs"}))
}

func TestExtrasAtom(t *testing.T) {
	assert.Equal(t, "", ExtrasAtom([]string{"zx48"}))
	assert.Equal(t, "(GS, 128K)", ExtrasAtom([]string{"zx128", "gs"}))
}

func TestPlatformNames(t *testing.T) {
	names := PlatformNames()
	assert.Len(t, names, 10)
	assert.Equal(t, DefaultPlatform, names[0])
}
