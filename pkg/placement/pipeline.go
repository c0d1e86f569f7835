// Package placement brings the archive tree in line with the catalog: it
// names each file, picks its directories, downloads or moves it there and
// records the result.
package placement

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/uptrace/bun"
	"github.com/zxarchive/zxmirror/pkg/archive"
	"github.com/zxarchive/zxmirror/pkg/buckets"
	"github.com/zxarchive/zxmirror/pkg/config"
	"github.com/zxarchive/zxmirror/pkg/download"
	"github.com/zxarchive/zxmirror/pkg/errcodes"
	"github.com/zxarchive/zxmirror/pkg/files"
	"github.com/zxarchive/zxmirror/pkg/fileutils"
	"github.com/zxarchive/zxmirror/pkg/models"
	"github.com/zxarchive/zxmirror/pkg/naming"
	"github.com/zxarchive/zxmirror/pkg/products"
	"github.com/zxarchive/zxmirror/pkg/releases"
	"github.com/zxarchive/zxmirror/pkg/tasks"
)

const maxDuplicateIndex = 1000

var ErrNameSpaceExhausted = errors.New("no unused file name found")

type Pipeline struct {
	root string

	productService *products.Service
	releaseService *releases.Service
	fileService    *files.Service
	taskService    *tasks.Service

	resolver   *naming.Resolver
	allocator  *buckets.Allocator
	downloader *download.Downloader
	extractor  *archive.Extractor

	// mu serializes name probing and bucket admission.
	mu sync.Mutex
}

func New(cfg *config.Config, db *bun.DB, downloader *download.Downloader) *Pipeline {
	allocator := buckets.NewAllocator(cfg.ArchiveRoot, cfg.BucketCeiling, buckets.FSCounter{})
	allocator.TitleMaxLength = cfg.TitleMaxLength

	return &Pipeline{
		root: cfg.ArchiveRoot,

		productService: products.NewService(db),
		releaseService: releases.NewService(db),
		fileService:    files.NewService(db),
		taskService:    tasks.NewService(db),

		resolver:   naming.NewResolver(cfg.TitleMaxLength),
		allocator:  allocator,
		downloader: downloader,
		extractor:  archive.NewExtractor(),
	}
}

// SyncReleaseFiles places every file of a release. A failure on one file does
// not stop the others; all failures are returned together.
func (p *Pipeline) SyncReleaseFiles(ctx context.Context, releaseID int) error {
	log := logger.FromContext(ctx).Data(logger.Data{"release_id": releaseID})

	release, product, ok, err := p.loadRelease(ctx, releaseID)
	if err != nil || !ok {
		return err
	}

	siblings, err := p.fileService.ListFiles(ctx, files.ListFilesOptions{ReleaseID: &release.ID})
	if err != nil {
		return err
	}

	var errs []error
	for _, file := range siblings {
		in := naming.NameInput{Product: product, Release: release, Siblings: siblings, Target: file}
		if err := p.placeFile(ctx, in); err != nil {
			log.Err(err).Warn("file placement failed", logger.Data{"file_id": file.ID})
			errs = append(errs, errors.Wrapf(err, "file %d", file.ID))
		}
	}
	return stderrors.Join(errs...)
}

// RetryFile places a single file.
func (p *Pipeline) RetryFile(ctx context.Context, fileID int) error {
	log := logger.FromContext(ctx).Data(logger.Data{"file_id": fileID})

	file, err := p.fileService.RetrieveFile(ctx, files.RetrieveFileOptions{ID: &fileID})
	if err != nil {
		if errcodes.IsNotFound(err) {
			log.Warn("file no longer exists, skipping")
			return nil
		}
		return err
	}

	release, product, ok, err := p.loadRelease(ctx, file.ReleaseID)
	if err != nil || !ok {
		return err
	}

	siblings, err := p.fileService.ListFiles(ctx, files.ListFilesOptions{ReleaseID: &release.ID})
	if err != nil {
		return err
	}
	// Use the sibling instance so the recorded paths are current.
	for _, s := range siblings {
		if s.ID == file.ID {
			file = s
		}
	}

	return p.placeFile(ctx, naming.NameInput{Product: product, Release: release, Siblings: siblings, Target: file})
}

// CheckFailedFiles enqueues a retry_file task for every file that has no
// recorded path, returning how many were queued.
func (p *Pipeline) CheckFailedFiles(ctx context.Context) (int, error) {
	unplaced, err := p.fileService.ListFiles(ctx, files.ListFilesOptions{WithoutPaths: true})
	if err != nil {
		return 0, err
	}
	for _, file := range unplaced {
		target := strconv.Itoa(file.ID)
		if _, err := p.taskService.Enqueue(ctx, models.TaskTypeRetryFile, &target); err != nil {
			return 0, err
		}
	}
	return len(unplaced), nil
}

// DeleteFile removes every on-disk copy of a file, then its database rows.
func (p *Pipeline) DeleteFile(ctx context.Context, fileID int) error {
	file, err := p.fileService.RetrieveFile(ctx, files.RetrieveFileOptions{ID: &fileID})
	if err != nil {
		if errcodes.IsNotFound(err) {
			return nil
		}
		return err
	}

	var errs []error
	for _, rel := range file.PathStrings() {
		if err := p.removeEntry(rel); err != nil {
			errs = append(errs, err)
		}
	}
	if err := stderrors.Join(errs...); err != nil {
		return err
	}

	logger.FromContext(ctx).Info("deleted file", logger.Data{"file_id": fileID, "paths": len(file.Paths)})
	return p.fileService.DeleteFile(ctx, fileID)
}

// loadRelease returns ok=false when the release or its product is missing
// locally. That is an ordering problem upstream, so it is logged and skipped
// rather than failed.
func (p *Pipeline) loadRelease(ctx context.Context, releaseID int) (*models.Release, *models.Product, bool, error) {
	log := logger.FromContext(ctx).Data(logger.Data{"release_id": releaseID})

	release, err := p.releaseService.RetrieveRelease(ctx, releases.RetrieveReleaseOptions{ID: &releaseID})
	if err != nil {
		if errcodes.IsNotFound(err) {
			log.Warn("release not found locally, skipping")
			return nil, nil, false, nil
		}
		return nil, nil, false, err
	}

	product, err := p.productService.RetrieveProduct(ctx, products.RetrieveProductOptions{ID: &release.ProductID})
	if err != nil {
		if errcodes.IsNotFound(err) {
			log.Warn("product not found locally, skipping", logger.Data{"product_id": release.ProductID})
			return nil, nil, false, nil
		}
		return nil, nil, false, err
	}

	return release, product, true, nil
}

func (p *Pipeline) abs(rel string) string {
	return filepath.Join(p.root, filepath.FromSlash(rel))
}

// removeEntry deletes a recorded path, or the directory it was extracted
// into, and prunes directories left empty.
func (p *Pipeline) removeEntry(rel string) error {
	full := p.abs(rel)
	for _, candidate := range []string{full, archive.StripExtensions(full)} {
		if err := os.RemoveAll(candidate); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "failed to remove %s", candidate)
		}
	}
	fileutils.RemoveEmptyParents(filepath.Dir(full), p.root)
	return nil
}
