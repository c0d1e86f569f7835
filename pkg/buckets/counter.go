package buckets

import (
	"os"

	"github.com/pkg/errors"
)

// DirCounter answers the filesystem questions bucket admission asks.
type DirCounter interface {
	// Count returns the number of entries in dir. A missing dir counts 0.
	Count(dir string) (int, error)
	// Dirs returns the names of the subdirectories of dir. A missing dir has
	// none.
	Dirs(dir string) ([]string, error)
	// Exists reports whether path exists.
	Exists(path string) bool
}

// FSCounter is a DirCounter over the real filesystem.
type FSCounter struct{}

func (FSCounter) Count(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, errors.WithStack(err)
	}
	return len(entries), nil
}

func (FSCounter) Dirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.WithStack(err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func (FSCounter) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
