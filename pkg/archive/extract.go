package archive

import (
	"archive/tar"
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"github.com/zxarchive/zxmirror/pkg/fileutils"
)

// SourceFile is written into every extracted directory and holds the MD5 of
// the archive it came from.
const SourceFile = ".zxmirror-source"

type Extractor struct {
	MaxEntrySize int64
}

func NewExtractor() *Extractor {
	return &Extractor{MaxEntrySize: DefaultMaxEntrySize}
}

// Extract unpacks the archive at path into a sibling directory named after
// it without the extension chain, flattens a redundant top-level directory,
// records the archive's MD5 in SourceFile and deletes the archive. Files that are not supported containers are left
// alone and returned with extracted=false.
func (e *Extractor) Extract(path string) (dir string, extracted bool, err error) {
	format, err := DetectFormat(path)
	if err != nil {
		return "", false, err
	}
	if format == FormatNone {
		return path, false, nil
	}

	// Every entry is vetted before anything is written.
	names, err := e.entries(path, format)
	if err != nil {
		return "", false, err
	}
	for _, name := range names {
		if err := Guard(name); err != nil {
			return "", false, err
		}
	}

	sum, err := fileutils.FileMD5(path)
	if err != nil {
		return "", false, err
	}

	dir = StripExtensions(path)
	_, statErr := os.Stat(dir)
	created := os.IsNotExist(statErr)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", false, errors.WithStack(err)
	}

	if err := e.extract(path, format, dir); err != nil {
		if created {
			os.RemoveAll(dir)
		}
		return "", false, err
	}

	if err := Flatten(dir); err != nil {
		return "", false, err
	}
	if err := os.WriteFile(filepath.Join(dir, SourceFile), []byte(sum+"\n"), 0644); err != nil {
		return "", false, errors.WithStack(err)
	}

	if err := os.Remove(path); err != nil {
		return "", false, errors.Wrap(err, "failed to delete archive after extraction")
	}

	return dir, true, nil
}

// ExtractedFrom reports whether dir holds the contents of an archive with
// the given MD5. An empty md5 matches any extracted directory.
func ExtractedFrom(dir, md5 string) bool {
	if !fileutils.IsDir(dir) {
		return false
	}
	if md5 == "" {
		return true
	}
	recorded, err := os.ReadFile(filepath.Join(dir, SourceFile))
	if err != nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(string(recorded)), md5)
}

func (e *Extractor) entries(path string, format Format) ([]string, error) {
	var names []string
	switch format {
	case FormatZip:
		r, err := zip.OpenReader(path)
		if err != nil {
			if r != nil {
				r.Close()
			}
			if errors.Is(err, zip.ErrInsecurePath) {
				return nil, errors.Wrapf(ErrUnsafePath, "%s", path)
			}
			return nil, errors.Wrap(err, "failed to open ZIP file")
		}
		defer r.Close()
		for _, f := range r.File {
			names = append(names, f.Name)
		}
		return names, nil
	default:
		err := walkTar(path, format, func(hdr *tar.Header, _ io.Reader) error {
			names = append(names, hdr.Name)
			return nil
		})
		return names, err
	}
}

func (e *Extractor) extract(path string, format Format, dest string) error {
	switch format {
	case FormatZip:
		return e.extractZip(path, dest)
	default:
		return walkTar(path, format, func(hdr *tar.Header, r io.Reader) error {
			switch hdr.Typeflag {
			case tar.TypeDir:
				target, err := entryTarget(dest, hdr.Name)
				if err != nil {
					return err
				}
				return errors.WithStack(os.MkdirAll(target, 0755))
			case tar.TypeReg:
				return e.writeEntry(dest, hdr.Name, os.FileMode(hdr.Mode).Perm(), r)
			default:
				// Links and devices are not carried over.
				return nil
			}
		})
	}
}

func (e *Extractor) extractZip(path, dest string) error {
	r, err := zip.OpenReader(path)
	if err != nil {
		return errors.Wrap(err, "failed to open ZIP file")
	}
	defer r.Close()

	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			target, err := entryTarget(dest, f.Name)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(target, 0755); err != nil {
				return errors.Wrapf(err, "failed to create directory %s", f.Name)
			}
			continue
		}
		if !f.Mode().IsRegular() {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return errors.Wrapf(err, "failed to open ZIP entry %s", f.Name)
		}
		err = e.writeEntry(dest, f.Name, f.Mode().Perm(), rc)
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Extractor) writeEntry(dest, name string, perm os.FileMode, r io.Reader) error {
	target, err := entryTarget(dest, name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return errors.Wrapf(err, "failed to create directory for %s", name)
	}
	if perm == 0 {
		perm = 0644
	}

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return errors.Wrapf(err, "failed to create file %s", name)
	}

	limit := e.MaxEntrySize
	if limit <= 0 {
		limit = DefaultMaxEntrySize
	}
	n, err := io.Copy(out, io.LimitReader(r, limit+1))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return errors.Wrapf(err, "failed to extract %s", name)
	}
	if n > limit {
		return errors.Errorf("archive entry %s exceeds %d bytes", name, limit)
	}
	return nil
}

// entryTarget joins name under dest and checks the result stays inside it.
func entryTarget(dest, name string) (string, error) {
	if err := Guard(name); err != nil {
		return "", err
	}
	target := filepath.Join(dest, filepath.FromSlash(strings.ReplaceAll(name, `\`, "/")))
	cleanDest := filepath.Clean(dest)
	if target != cleanDest && !strings.HasPrefix(target, cleanDest+string(os.PathSeparator)) {
		return "", errors.Wrapf(ErrUnsafePath, "%q escapes destination", name)
	}
	return target, nil
}

func walkTar(path string, format Format, fn func(hdr *tar.Header, r io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()

	var src io.Reader = f
	switch format {
	case FormatTarGz:
		gz, err := gzip.NewReader(f)
		if err != nil {
			return errors.Wrap(err, "failed to open gzip stream")
		}
		defer gz.Close()
		src = gz
	case FormatTarZst:
		zr, err := zstd.NewReader(f)
		if err != nil {
			return errors.Wrap(err, "failed to open zstd stream")
		}
		defer zr.Close()
		src = zr
	}

	tr := tar.NewReader(src)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "failed to read tar entry")
		}
		if err := fn(hdr, tr); err != nil {
			return err
		}
	}
}
