// Package filesystem lists the mirrored archive tree for the ops API.
package filesystem

import (
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/zxarchive/zxmirror/pkg/archive"
)

type Service struct {
	root string
}

func NewService(root string) *Service {
	return &Service{root}
}

// BrowseOptions has the same structure as BrowseQuery to allow direct type conversion.
type BrowseOptions BrowseQuery

// Browse lists one archive directory. Paths are slash-separated and relative
// to the archive root; anything that would leave the root is rejected with
// archive.ErrUnsafePath.
func (s *Service) Browse(opts BrowseOptions) (*BrowseResponse, error) {
	rel := strings.Trim(filepath.ToSlash(opts.Path), "/")
	if rel != "" {
		if err := archive.Guard(rel); err != nil {
			return nil, err
		}
	}

	dir := filepath.Join(s.root, filepath.FromSlash(rel))
	info, err := os.Stat(dir)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if !info.IsDir() {
		return nil, errors.WithStack(os.ErrInvalid)
	}

	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	search := strings.ToLower(opts.Search)
	entries := []Entry{}
	for _, de := range dirEntries {
		name := de.Name()

		// Temp files from in-flight downloads and extractions.
		if strings.HasPrefix(name, ".") {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(name), search) {
			continue
		}

		entry := Entry{
			Name:  name,
			Path:  path.Join(rel, name),
			IsDir: de.IsDir(),
		}
		if !entry.IsDir {
			if fi, err := de.Info(); err == nil {
				entry.Size = fi.Size()
			}
		}
		entries = append(entries, entry)
	}

	// Directories first, then files, each alphabetically.
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].IsDir != entries[j].IsDir {
			return entries[i].IsDir
		}
		return strings.ToLower(entries[i].Name) < strings.ToLower(entries[j].Name)
	})

	total := len(entries)
	start := min(opts.Offset, total)
	end := min(start+opts.Limit, total)

	resp := &BrowseResponse{
		CurrentPath: rel,
		Entries:     entries[start:end],
		Total:       total,
		HasMore:     end < total,
	}
	if rel != "" {
		parent := path.Dir(rel)
		if parent == "." {
			parent = ""
		}
		resp.ParentPath = &parent
	}
	return resp, nil
}
