package reconcile

import (
	"context"
	"iter"
	"strings"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/zxarchive/zxmirror/pkg/catalog"
	"github.com/zxarchive/zxmirror/pkg/errcodes"
	"github.com/zxarchive/zxmirror/pkg/files"
	"github.com/zxarchive/zxmirror/pkg/fileutils"
	"github.com/zxarchive/zxmirror/pkg/htmlutil"
	"github.com/zxarchive/zxmirror/pkg/models"
	"github.com/zxarchive/zxmirror/pkg/products"
	"github.com/zxarchive/zxmirror/pkg/releases"
)

var releaseColumns = []string{
	"product_id", "title", "date_modified", "languages", "publishers",
	"year", "release_type", "version", "hardware",
}

// SyncReleases reconciles the full release feed.
func (e *Engine) SyncReleases(ctx context.Context) error {
	ids, err := e.releaseService.ListReleaseIDs(ctx, nil)
	if err != nil {
		return err
	}
	return e.syncReleaseFeed(ctx, e.catalog.Releases(ctx), ids)
}

// SyncReleasesByProduct reconciles only the releases of one product.
func (e *Engine) SyncReleasesByProduct(ctx context.Context, productID int) error {
	ids, err := e.releaseService.ListReleaseIDs(ctx, &productID)
	if err != nil {
		return err
	}
	ctx = logger.FromContext(ctx).Data(logger.Data{"product_id": productID}).WithContext(ctx)
	return e.syncReleaseFeed(ctx, e.catalog.ReleasesByProduct(ctx, productID), ids)
}

func (e *Engine) syncReleaseFeed(ctx context.Context, feed iter.Seq2[*catalog.Release, error], localIDs []int) error {
	ws := newWorkingSet(localIDs)

	return pass(ctx, feed, ws,
		func(remote *catalog.Release) error {
			// A release without playable files is not mirrored; a local copy
			// of it stays in the working set and is removed.
			if len(remote.PlayableFiles) == 0 {
				return nil
			}
			delete(ws, remote.ID.Int())
			return errors.Wrapf(e.syncRelease(ctx, remote), "release %d", remote.ID.Int())
		},
		func(id int) error {
			return e.enqueue(ctx, models.TaskTypeDeleteRelease, id)
		},
	)
}

func (e *Engine) syncRelease(ctx context.Context, remote *catalog.Release) error {
	id := remote.ID.Int()
	productID := remote.ProdID.Int()
	log := logger.FromContext(ctx).Data(logger.Data{"release_id": id, "product_id": productID})

	_, err := e.productService.RetrieveProduct(ctx, products.RetrieveProductOptions{ID: &productID})
	if err != nil {
		if errcodes.IsNotFound(err) {
			log.Warn("release references an unknown product, skipping")
			return nil
		}
		return err
	}

	next := mapRelease(remote)
	local, err := e.releaseService.RetrieveRelease(ctx, releases.RetrieveReleaseOptions{ID: &id})
	if err != nil && !errcodes.IsNotFound(err) {
		return err
	}

	switch {
	case local == nil:
		if err := e.releaseService.CreateRelease(ctx, next); err != nil {
			return err
		}
		log.Info("created release", logger.Data{"title": next.Title})
	case next.DateModified > local.DateModified:
		next.CreatedAt = local.CreatedAt
		if err := e.releaseService.UpdateRelease(ctx, next, releases.UpdateReleaseOptions{Columns: releaseColumns}); err != nil {
			return err
		}
		log.Info("updated release", logger.Data{"title": next.Title})
	default:
		return nil
	}

	if err := e.syncFiles(ctx, next, remote.PlayableFiles); err != nil {
		return err
	}
	return e.enqueue(ctx, models.TaskTypeCheckReleaseFiles, id)
}

// syncFiles upserts the release's published files and queues the removal of
// local files that are no longer published.
func (e *Engine) syncFiles(ctx context.Context, release *models.Release, remote []catalog.File) error {
	local, err := e.fileService.ListFiles(ctx, files.ListFilesOptions{ReleaseID: &release.ID})
	if err != nil {
		return err
	}
	ws := make(map[int]*models.File, len(local))
	for _, f := range local {
		ws[f.ID] = f
	}

	for _, rf := range remote {
		next := mapFile(release.ID, rf)
		existing, ok := ws[next.ID]
		delete(ws, next.ID)

		if !ok {
			existing, err = e.fileService.RetrieveFile(ctx, files.RetrieveFileOptions{ID: &next.ID})
			if err != nil && !errcodes.IsNotFound(err) {
				return err
			}
		}
		if existing == nil {
			if err := e.fileService.CreateFile(ctx, next); err != nil {
				return err
			}
			continue
		}

		columns := fileChanges(existing, next)
		if len(columns) == 0 {
			continue
		}
		if err := e.fileService.UpdateFile(ctx, existing, files.UpdateFileOptions{Columns: columns}); err != nil {
			return err
		}
	}

	for id := range ws {
		if err := e.enqueue(ctx, models.TaskTypeDeleteReleaseFile, id); err != nil {
			return err
		}
	}
	return nil
}

// fileChanges copies changed remote fields onto existing and returns the
// columns to write.
func fileChanges(existing, next *models.File) []string {
	var columns []string
	if existing.ReleaseID != next.ReleaseID {
		existing.ReleaseID = next.ReleaseID
		columns = append(columns, "release_id")
	}
	if !strings.EqualFold(existing.MD5, next.MD5) {
		existing.MD5 = next.MD5
		columns = append(columns, "md5")
	}
	if existing.Type != next.Type {
		existing.Type = next.Type
		columns = append(columns, "type")
	}
	if existing.OriginalFileName != next.OriginalFileName {
		existing.OriginalFileName = next.OriginalFileName
		columns = append(columns, "original_file_name")
	}
	return columns
}

func mapRelease(remote *catalog.Release) *models.Release {
	return &models.Release{
		ID:           remote.ID.Int(),
		ProductID:    remote.ProdID.Int(),
		Title:        htmlutil.CleanText(remote.Title),
		DateModified: int64(remote.DateModified),
		Languages:    remote.Languages.String(),
		Publishers:   remote.Publishers.String(),
		Year:         remote.Year.Ptr(),
		ReleaseType:  remote.ReleaseType,
		Version:      remote.Version.String(),
		Hardware:     []string(remote.Hardware),
	}
}

func mapFile(releaseID int, remote catalog.File) *models.File {
	name := remote.FileName.String()
	fileType := strings.ToLower(strings.TrimPrefix(remote.Type, "."))
	if fileType == "" {
		_, fileType = fileutils.SplitExt(name)
	}
	return &models.File{
		ID:               remote.ID.Int(),
		ReleaseID:        releaseID,
		MD5:              strings.ToLower(remote.MD5),
		Type:             fileType,
		OriginalFileName: name,
	}
}
