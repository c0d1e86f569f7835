package reconcile

import (
	"context"
	stderrors "errors"

	"github.com/robinjoseph08/golib/logger"
	"github.com/zxarchive/zxmirror/pkg/files"
)

// DeleteProduct removes a product bottom-up: every file of every release
// first, then the releases, then the product. Nothing above a failed step is
// deleted, so no row is left pointing at a removed child.
func (e *Engine) DeleteProduct(ctx context.Context, productID int) error {
	releaseIDs, err := e.releaseService.ListReleaseIDs(ctx, &productID)
	if err != nil {
		return err
	}

	var errs []error
	for _, id := range releaseIDs {
		if err := e.deleteReleaseFiles(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	if err := stderrors.Join(errs...); err != nil {
		return err
	}

	for _, id := range releaseIDs {
		if err := e.releaseService.DeleteRelease(ctx, id); err != nil {
			return err
		}
	}
	if err := e.productService.DeleteProduct(ctx, productID); err != nil {
		return err
	}

	logger.FromContext(ctx).Info("deleted product", logger.Data{"product_id": productID, "releases": len(releaseIDs)})
	return nil
}

// DeleteRelease removes a release's files, then the release.
func (e *Engine) DeleteRelease(ctx context.Context, releaseID int) error {
	if err := e.deleteReleaseFiles(ctx, releaseID); err != nil {
		return err
	}
	if err := e.releaseService.DeleteRelease(ctx, releaseID); err != nil {
		return err
	}
	logger.FromContext(ctx).Info("deleted release", logger.Data{"release_id": releaseID})
	return nil
}

// DeleteReleaseFile removes one file from disk and the store.
func (e *Engine) DeleteReleaseFile(ctx context.Context, fileID int) error {
	return e.placement.DeleteFile(ctx, fileID)
}

func (e *Engine) deleteReleaseFiles(ctx context.Context, releaseID int) error {
	list, err := e.fileService.ListFiles(ctx, files.ListFilesOptions{ReleaseID: &releaseID})
	if err != nil {
		return err
	}
	var errs []error
	for _, f := range list {
		if err := e.placement.DeleteFile(ctx, f.ID); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}
