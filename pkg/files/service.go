package files

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
	"github.com/zxarchive/zxmirror/pkg/errcodes"
	"github.com/zxarchive/zxmirror/pkg/models"
)

type RetrieveFileOptions struct {
	ID *int
}

type ListFilesOptions struct {
	ReleaseID    *int
	WithoutPaths bool
}

type UpdateFileOptions struct {
	Columns []string
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

func (svc *Service) CreateFile(ctx context.Context, file *models.File) error {
	if file.CreatedAt.IsZero() {
		file.CreatedAt = time.Now()
	}
	file.UpdatedAt = file.CreatedAt

	_, err := svc.db.
		NewInsert().
		Model(file).
		Exec(ctx)
	return errors.WithStack(err)
}

func (svc *Service) RetrieveFile(ctx context.Context, opts RetrieveFileOptions) (*models.File, error) {
	file := &models.File{}

	q := svc.db.
		NewSelect().
		Model(file).
		Relation("Paths", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("fp.path ASC")
		})

	if opts.ID != nil {
		q = q.Where("f.id = ?", *opts.ID)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("File")
		}
		return nil, errors.WithStack(err)
	}

	return file, nil
}

// ListFiles returns files ordered by id, which is also the order remote
// siblings are numbered in ("Disk 1 of 2").
func (svc *Service) ListFiles(ctx context.Context, opts ListFilesOptions) ([]*models.File, error) {
	files := []*models.File{}

	q := svc.db.
		NewSelect().
		Model(&files).
		Relation("Paths", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("fp.path ASC")
		}).
		Order("f.id ASC")

	if opts.ReleaseID != nil {
		q = q.Where("f.release_id = ?", *opts.ReleaseID)
	}
	if opts.WithoutPaths {
		q = q.Where("NOT EXISTS (SELECT 1 FROM file_paths AS p WHERE p.file_id = f.id)")
	}

	err := q.Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return files, nil
}

// ExistsFileName reports whether another file already holds name. The file
// identified by excludeFileID never collides with itself.
func (svc *Service) ExistsFileName(ctx context.Context, name string, excludeFileID int) (bool, error) {
	exists, err := svc.db.
		NewSelect().
		Model((*models.File)(nil)).
		Where("f.file_name = ?", name).
		Where("f.id != ?", excludeFileID).
		Exists(ctx)
	if err != nil {
		return false, errors.WithStack(err)
	}
	return exists, nil
}

func (svc *Service) UpdateFile(ctx context.Context, file *models.File, opts UpdateFileOptions) error {
	if len(opts.Columns) == 0 {
		return nil
	}

	file.UpdatedAt = time.Now()
	columns := append(opts.Columns, "updated_at")

	_, err := svc.db.
		NewUpdate().
		Model(file).
		Column(columns...).
		WherePK().
		Exec(ctx)
	return errors.WithStack(err)
}

// UpdatePlacement stores the resolved name and the full set of paths of a
// file in one transaction. Paths that are kept retain their ids.
func (svc *Service) UpdatePlacement(ctx context.Context, file *models.File, fileName string, paths []string) error {
	return svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		now := time.Now()
		file.FileName = &fileName
		file.UpdatedAt = now

		_, err := tx.
			NewUpdate().
			Model(file).
			Column("file_name", "updated_at").
			WherePK().
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		existing := map[string]*models.FilePath{}
		for _, fp := range file.Paths {
			existing[fp.Path] = fp
		}
		wanted := map[string]struct{}{}
		for _, p := range paths {
			wanted[p] = struct{}{}
		}

		for path, fp := range existing {
			if _, ok := wanted[path]; ok {
				continue
			}
			_, err := tx.
				NewDelete().
				Model((*models.FilePath)(nil)).
				Where("id = ?", fp.ID).
				Exec(ctx)
			if err != nil {
				return errors.WithStack(err)
			}
		}

		next := make([]*models.FilePath, 0, len(paths))
		for _, p := range paths {
			if fp, ok := existing[p]; ok {
				next = append(next, fp)
				continue
			}
			fp := &models.FilePath{
				ID:        uuid.NewString(),
				CreatedAt: now,
				FileID:    file.ID,
				Path:      p,
			}
			_, err := tx.
				NewInsert().
				Model(fp).
				Exec(ctx)
			if err != nil {
				return errors.WithStack(err)
			}
			next = append(next, fp)
		}

		file.Paths = next
		return nil
	})
}

// DeleteFile removes the file row and its path rows.
func (svc *Service) DeleteFile(ctx context.Context, id int) error {
	return svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.
			NewDelete().
			Model((*models.FilePath)(nil)).
			Where("file_id = ?", id).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = tx.
			NewDelete().
			Model((*models.File)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		return errors.WithStack(err)
	})
}
