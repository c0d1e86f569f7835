package tasklogs

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
	"github.com/zxarchive/zxmirror/pkg/models"
)

type ListTaskLogsOptions struct {
	TaskID  string
	AfterID *int
	Levels  []string
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

func (svc *Service) CreateTaskLog(ctx context.Context, log *models.TaskLog) error {
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}

	_, err := svc.db.
		NewInsert().
		Model(log).
		Returning("id").
		Exec(ctx)
	return errors.WithStack(err)
}

func (svc *Service) ListTaskLogs(ctx context.Context, opts ListTaskLogsOptions) ([]*models.TaskLog, error) {
	logs := []*models.TaskLog{}

	q := svc.db.
		NewSelect().
		Model(&logs).
		Where("tl.task_id = ?", opts.TaskID).
		Order("tl.id ASC")

	if opts.AfterID != nil {
		q = q.Where("tl.id > ?", *opts.AfterID)
	}
	if len(opts.Levels) > 0 {
		q = q.Where("tl.level IN (?)", bun.In(opts.Levels))
	}

	err := q.Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return logs, nil
}
