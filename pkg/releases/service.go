package releases

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
	"github.com/zxarchive/zxmirror/pkg/errcodes"
	"github.com/zxarchive/zxmirror/pkg/models"
)

type RetrieveReleaseOptions struct {
	ID *int
}

type ListReleasesOptions struct {
	ProductID *int
}

type UpdateReleaseOptions struct {
	Columns []string
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

func (svc *Service) CreateRelease(ctx context.Context, release *models.Release) error {
	if release.CreatedAt.IsZero() {
		release.CreatedAt = time.Now()
	}
	release.UpdatedAt = release.CreatedAt

	_, err := svc.db.
		NewInsert().
		Model(release).
		Exec(ctx)
	return errors.WithStack(err)
}

func (svc *Service) RetrieveRelease(ctx context.Context, opts RetrieveReleaseOptions) (*models.Release, error) {
	release := &models.Release{}

	q := svc.db.
		NewSelect().
		Model(release)

	if opts.ID != nil {
		q = q.Where("r.id = ?", *opts.ID)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Release")
		}
		return nil, errors.WithStack(err)
	}

	return release, nil
}

func (svc *Service) ListReleases(ctx context.Context, opts ListReleasesOptions) ([]*models.Release, error) {
	releases := []*models.Release{}

	q := svc.db.
		NewSelect().
		Model(&releases).
		Order("r.id ASC")

	if opts.ProductID != nil {
		q = q.Where("r.product_id = ?", *opts.ProductID)
	}

	err := q.Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return releases, nil
}

// ListReleaseIDs returns the ids of all local releases, or of one product's
// releases when productID is set.
func (svc *Service) ListReleaseIDs(ctx context.Context, productID *int) ([]int, error) {
	var ids []int

	q := svc.db.
		NewSelect().
		Model((*models.Release)(nil)).
		Column("r.id").
		Order("r.id ASC")

	if productID != nil {
		q = q.Where("r.product_id = ?", *productID)
	}

	err := q.Scan(ctx, &ids)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return ids, nil
}

func (svc *Service) UpdateRelease(ctx context.Context, release *models.Release, opts UpdateReleaseOptions) error {
	if len(opts.Columns) == 0 {
		return nil
	}

	release.UpdatedAt = time.Now()
	columns := append(opts.Columns, "updated_at")

	_, err := svc.db.
		NewUpdate().
		Model(release).
		Column(columns...).
		WherePK().
		Exec(ctx)
	return errors.WithStack(err)
}

// DeleteRelease removes only the release row; its files must already be gone.
func (svc *Service) DeleteRelease(ctx context.Context, id int) error {
	_, err := svc.db.
		NewDelete().
		Model((*models.Release)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return errors.WithStack(err)
}
