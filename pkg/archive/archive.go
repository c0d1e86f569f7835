// Package archive unpacks downloaded container files (zip, tar, tar.gz and
// tar.zst) into a sibling directory named after the archive.
package archive

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
)

var ErrUnsafePath = errors.New("unsafe archive entry path")

// DefaultMaxEntrySize bounds a single extracted entry.
const DefaultMaxEntrySize int64 = 256 << 20

type Format string

const (
	FormatNone   Format = ""
	FormatZip    Format = "zip"
	FormatTar    Format = "tar"
	FormatTarGz  Format = "tar.gz"
	FormatTarZst Format = "tar.zst"
)

// extensionChains is checked in order, longest chain first.
var extensionChains = []struct {
	suffix string
	format Format
}{
	{".tar.gz", FormatTarGz},
	{".tar.zst", FormatTarZst},
	{".tgz", FormatTarGz},
	{".tar", FormatTar},
	{".zip", FormatZip},
}

// sniffedMIME is the content type a format's bytes must sniff as. Plain tar
// is trusted by extension; old tar headers carry no magic.
var sniffedMIME = map[Format]string{
	FormatZip:    "application/zip",
	FormatTarGz:  "application/gzip",
	FormatTarZst: "application/zstd",
}

// FormatFromName returns the container format implied by the extension chain.
func FormatFromName(name string) Format {
	lower := strings.ToLower(name)
	for _, c := range extensionChains {
		if strings.HasSuffix(lower, c.suffix) && len(lower) > len(c.suffix) {
			return c.format
		}
	}
	return FormatNone
}

// StripExtensions removes a container extension chain: "a/b.tar.gz" becomes
// "a/b". Names without one are returned unchanged.
func StripExtensions(name string) string {
	lower := strings.ToLower(name)
	for _, c := range extensionChains {
		if strings.HasSuffix(lower, c.suffix) && len(lower) > len(c.suffix) {
			return name[:len(name)-len(c.suffix)]
		}
	}
	return name
}

// DetectFormat returns the container format of the file at path: the
// extension chain decides, and the content must agree.
func DetectFormat(path string) (Format, error) {
	format := FormatFromName(path)
	want, ok := sniffedMIME[format]
	if format == FormatNone || !ok {
		return format, nil
	}

	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return FormatNone, errors.WithStack(err)
	}
	for m := mtype; m != nil; m = m.Parent() {
		if m.Is(want) {
			return format, nil
		}
	}
	return FormatNone, nil
}

// IsContainer reports whether the file at path is an archive Extract unpacks.
func IsContainer(path string) (bool, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return false, err
	}
	return format != FormatNone, nil
}

// Guard rejects entry names that could escape the extraction directory.
func Guard(name string) error {
	if name == "" || strings.ContainsRune(name, 0) {
		return errors.Wrapf(ErrUnsafePath, "%q", name)
	}
	normalized := strings.ReplaceAll(name, `\`, "/")
	if strings.HasPrefix(normalized, "/") {
		return errors.Wrapf(ErrUnsafePath, "absolute path %q", name)
	}
	if len(normalized) >= 2 && normalized[1] == ':' && isASCIILetter(normalized[0]) {
		return errors.Wrapf(ErrUnsafePath, "drive path %q", name)
	}
	for _, segment := range strings.Split(normalized, "/") {
		if segment == ".." {
			return errors.Wrapf(ErrUnsafePath, "path traversal %q", name)
		}
	}
	return nil
}

func isASCIILetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// Flatten moves the children of a single nested directory up into dir and
// removes the nested directory. Anything else is left alone.
func Flatten(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return errors.WithStack(err)
	}
	if len(entries) != 1 || !entries[0].IsDir() {
		return nil
	}

	nested := filepath.Join(dir, entries[0].Name())
	children, err := os.ReadDir(nested)
	if err != nil {
		return errors.WithStack(err)
	}

	// A child named like the nested directory would collide with it.
	tmp := nested
	for _, child := range children {
		if child.Name() == entries[0].Name() {
			tmp = nested + ".flatten"
			if err := os.Rename(nested, tmp); err != nil {
				return errors.WithStack(err)
			}
			break
		}
	}

	for _, child := range children {
		if err := os.Rename(filepath.Join(tmp, child.Name()), filepath.Join(dir, child.Name())); err != nil {
			return errors.Wrapf(err, "failed to move %s out of %s", child.Name(), tmp)
		}
	}
	return errors.WithStack(os.Remove(tmp))
}
