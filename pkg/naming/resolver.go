package naming

import (
	"strings"

	"github.com/zxarchive/zxmirror/pkg/fileutils"
)

const DefaultMaxTitleLength = 120

type Resolver struct {
	MaxTitleLength int
}

func NewResolver(maxTitleLength int) *Resolver {
	return &Resolver{MaxTitleLength: maxTitleLength}
}

// Resolve returns the archive filename of in.Target. It is deterministic for
// a given duplicateIndex; the caller probes upward from 0 until the name is
// unused catalog-wide.
func (r *Resolver) Resolve(in NameInput, duplicateIndex int) string {
	atoms := []string{
		TitleAtom(in, r.MaxTitleLength),
		VersionAtom(in),
		DemoAtom(in),
		YearAtom(in),
		PublisherAtom(in),
		LanguageAtom(in),
		HardwareAtom(in),
		MediaPartAtom(in),
		PublicDomainAtom(in),
	}

	parts := make([]string, 0, len(atoms))
	for _, atom := range atoms {
		if atom != "" {
			parts = append(parts, atom)
		}
	}

	name := strings.Join(parts, " ") + DumpFlag(in, duplicateIndex)
	if ext := Extension(in); ext != "" {
		name += "." + ext
	}
	return name
}

// Extension is the lowercase file type, falling back to the extension of the
// original filename.
func Extension(in NameInput) string {
	ext := strings.ToLower(strings.TrimPrefix(in.Target.Type, "."))
	if ext == "" {
		_, ext = fileutils.SplitExt(in.Target.OriginalFileName)
	}
	return Sanitize(ext, 0)
}
