package products

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
	"github.com/zxarchive/zxmirror/pkg/errcodes"
	"github.com/zxarchive/zxmirror/pkg/models"
)

type RetrieveProductOptions struct {
	ID *int
}

type ListProductsOptions struct {
	Limit  *int
	Offset *int
}

type UpdateProductOptions struct {
	Columns []string
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

func (svc *Service) CreateProduct(ctx context.Context, product *models.Product) error {
	now := time.Now()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = product.CreatedAt

	_, err := svc.db.
		NewInsert().
		Model(product).
		Exec(ctx)
	return errors.WithStack(err)
}

func (svc *Service) RetrieveProduct(ctx context.Context, opts RetrieveProductOptions) (*models.Product, error) {
	product := &models.Product{}

	q := svc.db.
		NewSelect().
		Model(product)

	if opts.ID != nil {
		q = q.Where("p.id = ?", *opts.ID)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Product")
		}
		return nil, errors.WithStack(err)
	}

	return product, nil
}

func (svc *Service) ListProducts(ctx context.Context, opts ListProductsOptions) ([]*models.Product, error) {
	products := []*models.Product{}

	q := svc.db.
		NewSelect().
		Model(&products).
		Order("p.id ASC")

	if opts.Limit != nil {
		q = q.Limit(*opts.Limit)
	}
	if opts.Offset != nil {
		q = q.Offset(*opts.Offset)
	}

	err := q.Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return products, nil
}

// ListProductIDs returns every locally known product id.
func (svc *Service) ListProductIDs(ctx context.Context) ([]int, error) {
	var ids []int
	err := svc.db.
		NewSelect().
		Model((*models.Product)(nil)).
		Column("p.id").
		Order("p.id ASC").
		Scan(ctx, &ids)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return ids, nil
}

func (svc *Service) UpdateProduct(ctx context.Context, product *models.Product, opts UpdateProductOptions) error {
	if len(opts.Columns) == 0 {
		return nil
	}

	product.UpdatedAt = time.Now()
	columns := append(opts.Columns, "updated_at")

	_, err := svc.db.
		NewUpdate().
		Model(product).
		Column(columns...).
		WherePK().
		Exec(ctx)
	return errors.WithStack(err)
}

// DeleteProduct removes only the product row. Callers are responsible for
// deleting its releases first.
func (svc *Service) DeleteProduct(ctx context.Context, id int) error {
	_, err := svc.db.
		NewDelete().
		Model((*models.Product)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return errors.WithStack(err)
}
