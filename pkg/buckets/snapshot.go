package buckets

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
)

// SnapshotFileName is the snapshot's file name inside the cache directory.
const SnapshotFileName = "buckets.json"

// Snapshot is a point-in-time report of product folder counts per
// platform, category and bucket. The allocator never reads it.
type Snapshot struct {
	GeneratedAt time.Time                            `json:"generated_at"`
	Platforms   map[string]map[string]map[string]int `json:"platforms"`
}

// TakeSnapshot lists root three levels deep and counts the entries of every
// bucket directory.
func TakeSnapshot(root string, counter DirCounter) (*Snapshot, error) {
	if counter == nil {
		counter = FSCounter{}
	}
	snap := &Snapshot{
		GeneratedAt: time.Now().UTC(),
		Platforms:   map[string]map[string]map[string]int{},
	}

	platforms, err := subdirs(root)
	if err != nil {
		return nil, err
	}
	for _, platform := range platforms {
		categories, err := subdirs(filepath.Join(root, platform))
		if err != nil {
			return nil, err
		}
		byCategory := map[string]map[string]int{}
		for _, category := range categories {
			buckets, err := subdirs(filepath.Join(root, platform, category))
			if err != nil {
				return nil, err
			}
			counts := map[string]int{}
			for _, bucket := range buckets {
				n, err := counter.Count(filepath.Join(root, platform, category, bucket))
				if err != nil {
					return nil, err
				}
				counts[bucket] = n
			}
			byCategory[category] = counts
		}
		snap.Platforms[platform] = byCategory
	}
	return snap, nil
}

func subdirs(dir string) ([]string, error) {
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

// WriteSnapshot stores snap as JSON at path, replacing any previous file.
func WriteSnapshot(path string, snap *Snapshot) error {
	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return errors.WithStack(err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.WithStack(err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0644); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(os.Rename(tmp, path))
}

func ReadSnapshot(path string) (*Snapshot, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	snap := &Snapshot{}
	if err := json.Unmarshal(b, snap); err != nil {
		return nil, errors.WithStack(err)
	}
	return snap, nil
}
