// Package buckets places product folders under
// platform/category/bucket/productFolder, keeping every bucket below a fixed
// number of product folders.
package buckets

import (
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/zxarchive/zxmirror/pkg/hardware"
	"github.com/zxarchive/zxmirror/pkg/models"
	"github.com/zxarchive/zxmirror/pkg/naming"
)

const (
	DefaultCeiling    = 400
	DefaultMaxBuckets = 999
	DefaultCategory   = "Misc"

	digitKey = "0-9"
	otherKey = "other"
)

type Allocator struct {
	Root           string
	Ceiling        int
	MaxBuckets     int
	TitleMaxLength int

	counter DirCounter
	mu      sync.Mutex
}

func NewAllocator(root string, ceiling int, counter DirCounter) *Allocator {
	if ceiling <= 0 {
		ceiling = DefaultCeiling
	}
	if counter == nil {
		counter = FSCounter{}
	}
	return &Allocator{
		Root:           root,
		Ceiling:        ceiling,
		MaxBuckets:     DefaultMaxBuckets,
		TitleMaxLength: naming.DefaultMaxTitleLength,
		counter:        counter,
	}
}

// Resolve returns one root-relative product directory per platform the
// release targets, in platform priority order. Bucket counts are read from
// the filesystem at call time.
func (a *Allocator) Resolve(product *models.Product, release *models.Release) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	folder := ProductFolder(product, a.TitleMaxLength)
	category := Category(product)
	key := BucketKey(folder)

	var hw []string
	if release != nil {
		hw = release.Hardware
	}

	platforms := hardware.Platforms(hw)
	dirs := make([]string, 0, len(platforms))
	for _, platform := range platforms {
		parent := filepath.Join(platform, category)
		bucket, err := a.pickBucket(parent, key, folder)
		if err != nil {
			return nil, err
		}
		dirs = append(dirs, filepath.Join(parent, bucket, folder))
	}
	return dirs, nil
}

// pickBucket returns the bucket that already holds folder, looking through
// every existing K, K2, K3, ... first. Otherwise it walks the buckets in
// order and returns the first one with room.
func (a *Allocator) pickBucket(parent, key, folder string) (string, error) {
	existing, err := a.existingBuckets(parent, key)
	if err != nil {
		return "", err
	}
	for _, n := range existing {
		bucket := bucketName(key, n)
		if a.counter.Exists(filepath.Join(a.Root, parent, bucket, folder)) {
			return bucket, nil
		}
	}

	for i := 1; i <= a.MaxBuckets; i++ {
		bucket := bucketName(key, i)
		count, err := a.counter.Count(filepath.Join(a.Root, parent, bucket))
		if err != nil {
			return "", err
		}
		if count < a.Ceiling {
			return bucket, nil
		}
	}
	return key, nil
}

// existingBuckets returns the indexes of the key's buckets present under
// parent, ascending.
func (a *Allocator) existingBuckets(parent, key string) ([]int, error) {
	names, err := a.counter.Dirs(filepath.Join(a.Root, parent))
	if err != nil {
		return nil, err
	}
	var indexes []int
	for _, name := range names {
		if n := bucketIndex(key, name); n > 0 && n <= a.MaxBuckets {
			indexes = append(indexes, n)
		}
	}
	sort.Ints(indexes)
	return indexes, nil
}

// bucketIndex is the inverse of bucketName: 1 for the key itself, n for
// key+n and 0 for anything else.
func bucketIndex(key, name string) int {
	if name == key {
		return 1
	}
	rest, ok := strings.CutPrefix(name, key)
	if !ok || rest == "" || rest[0] < '1' || rest[0] > '9' {
		return 0
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 2 {
		return 0
	}
	return n
}

func bucketName(key string, n int) string {
	if n <= 1 {
		return key
	}
	return key + strconv.Itoa(n)
}

// BucketKey maps a sanitized title to its coarse bucket: an uppercase letter,
// "0-9" or "other".
func BucketKey(title string) string {
	for _, r := range title {
		r = unicode.ToUpper(r)
		switch {
		case r >= 'A' && r <= 'Z':
			return string(r)
		case r >= '0' && r <= '9':
			return digitKey
		default:
			return otherKey
		}
	}
	return otherKey
}

// ProductFolder is the product's sanitized, article-transposed title.
func ProductFolder(product *models.Product, maxLen int) string {
	folder := product.SanitizedTitle
	if folder == "" {
		folder = naming.SanitizeTitle(product.Title, maxLen)
	}
	if folder == "" {
		folder = "Unknown " + strconv.Itoa(product.ID)
	}
	return folder
}

func Category(product *models.Product) string {
	if product.CategoryTitle != nil {
		if category := naming.Sanitize(*product.CategoryTitle, 0); category != "" {
			return category
		}
	}
	return DefaultCategory
}
