package reconcile

import (
	"context"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/zxarchive/zxmirror/pkg/catalog"
	"github.com/zxarchive/zxmirror/pkg/errcodes"
	"github.com/zxarchive/zxmirror/pkg/htmlutil"
	"github.com/zxarchive/zxmirror/pkg/models"
	"github.com/zxarchive/zxmirror/pkg/naming"
	"github.com/zxarchive/zxmirror/pkg/products"
)

var productColumns = []string{
	"title", "sanitized_title", "date_modified", "languages", "publishers",
	"legal_status", "category_id", "category_title", "year",
}

// SyncProducts reconciles the full product feed. New and changed products
// get a check_prod_releases task, and the local releases of a changed product
// get check_release_files; products missing from the feed get a delete_prod
// task.
func (e *Engine) SyncProducts(ctx context.Context) error {
	ids, err := e.productService.ListProductIDs(ctx)
	if err != nil {
		return err
	}
	ws := newWorkingSet(ids)

	return pass(ctx, e.catalog.Products(ctx), ws,
		func(remote *catalog.Product) error {
			delete(ws, remote.ID.Int())
			return errors.Wrapf(e.syncProduct(ctx, remote), "product %d", remote.ID.Int())
		},
		func(id int) error {
			return e.enqueue(ctx, models.TaskTypeDeleteProd, id)
		},
	)
}

func (e *Engine) syncProduct(ctx context.Context, remote *catalog.Product) error {
	id := remote.ID.Int()
	next := e.mapProduct(remote)

	local, err := e.productService.RetrieveProduct(ctx, products.RetrieveProductOptions{ID: &id})
	if err != nil && !errcodes.IsNotFound(err) {
		return err
	}

	log := logger.FromContext(ctx).Data(logger.Data{"product_id": id})
	switch {
	case local == nil:
		if err := e.productService.CreateProduct(ctx, next); err != nil {
			return err
		}
		log.Info("created product", logger.Data{"title": next.Title})
	case next.DateModified > local.DateModified:
		next.CreatedAt = local.CreatedAt
		if err := e.productService.UpdateProduct(ctx, next, products.UpdateProductOptions{Columns: productColumns}); err != nil {
			return err
		}
		log.Info("updated product", logger.Data{"title": next.Title})
		if err := e.enqueue(ctx, models.TaskTypeCheckProdReleases, id); err != nil {
			return err
		}
		// Title, year, publishers and category all feed the file names and
		// folders of releases the feed itself reports unchanged.
		return e.queueReleaseFiles(ctx, id)
	default:
		return nil
	}

	return e.enqueue(ctx, models.TaskTypeCheckProdReleases, id)
}

// queueReleaseFiles queues placement for every local release of a product.
func (e *Engine) queueReleaseFiles(ctx context.Context, productID int) error {
	ids, err := e.releaseService.ListReleaseIDs(ctx, &productID)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := e.enqueue(ctx, models.TaskTypeCheckReleaseFiles, id); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) mapProduct(remote *catalog.Product) *models.Product {
	title := htmlutil.CleanText(remote.Title)
	p := &models.Product{
		ID:             remote.ID.Int(),
		Title:          title,
		SanitizedTitle: naming.SanitizeTitle(title, e.titleMaxLength),
		DateModified:   int64(remote.DateModified),
		Languages:      remote.Languages.String(),
		Publishers:     remote.Publishers.String(),
		LegalStatus:    remote.LegalStatus,
		Year:           remote.Year.Ptr(),
	}
	if c := remote.PrimaryCategory(); c != nil {
		id, title := c.ID.Int(), htmlutil.CleanText(c.Title)
		p.CategoryID = &id
		p.CategoryTitle = &title
	}
	return p
}

// BuildTitles recomputes every product's sanitized title from its raw title
// and returns how many changed. Releases of a changed product are queued for
// placement, since their folder moves with the title.
func (e *Engine) BuildTitles(ctx context.Context) (int, error) {
	list, err := e.productService.ListProducts(ctx, products.ListProductsOptions{})
	if err != nil {
		return 0, err
	}

	changed := 0
	for _, p := range list {
		title := naming.SanitizeTitle(p.Title, e.titleMaxLength)
		if title == p.SanitizedTitle {
			continue
		}
		p.SanitizedTitle = title
		if err := e.productService.UpdateProduct(ctx, p, products.UpdateProductOptions{Columns: []string{"sanitized_title"}}); err != nil {
			return changed, err
		}
		changed++

		if err := e.queueReleaseFiles(ctx, p.ID); err != nil {
			return changed, err
		}
	}
	logger.FromContext(ctx).Info("rebuilt titles", logger.Data{"products": len(list), "changed": changed})
	return changed, nil
}
