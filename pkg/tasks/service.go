package tasks

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

const maxErrorLen = 4096

type RetrieveTaskOptions struct {
	ID *string
}

type ListTasksOptions struct {
	Limit    *int
	Offset   *int
	Statuses []models.TaskStatus
	Type     *models.TaskType

	includeTotal bool
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

// Enqueue adds a todo task. If an identical (type, target) task is already
// waiting, that task is returned instead of creating a duplicate.
func (svc *Service) Enqueue(ctx context.Context, taskType models.TaskType, targetID *string) (*models.Task, error) {
	if !taskType.Valid() {
		return nil, errors.Errorf("unknown task type %q", taskType)
	}

	existing := &models.Task{}
	q := svc.db.
		NewSelect().
		Model(existing).
		Where("t.type = ?", taskType).
		Where("t.status = ?", models.TaskStatusTodo).
		Limit(1)
	if targetID == nil {
		q = q.Where("t.target_id IS NULL")
	} else {
		q = q.Where("t.target_id = ?", *targetID)
	}
	err := q.Scan(ctx)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, errors.WithStack(err)
	}

	now := time.Now()
	task := &models.Task{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
		Type:      taskType,
		TargetID:  targetID,
		Status:    models.TaskStatusTodo,
	}
	_, err = svc.db.
		NewInsert().
		Model(task).
		Exec(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return task, nil
}

// ClaimNext moves the oldest todo task to in_progress and returns it. It
// returns nil when the queue holds no todo task.
func (svc *Service) ClaimNext(ctx context.Context) (*models.Task, error) {
	var claimed *models.Task
	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		task := &models.Task{}
		err := tx.
			NewSelect().
			Model(task).
			Where("t.status = ?", models.TaskStatusTodo).
			OrderExpr("t.created_at ASC, t.rowid ASC").
			Limit(1).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return errors.WithStack(err)
		}

		now := time.Now()
		task.Status = models.TaskStatusInProgress
		task.ClaimedAt = &now
		task.Attempts++
		task.UpdatedAt = now

		res, err := tx.
			NewUpdate().
			Model(task).
			Column("status", "claimed_at", "attempts", "updated_at").
			WherePK().
			Where("status = ?", models.TaskStatusTodo).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}
		claimed = task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// Claim moves one specific todo (or failed) task to in_progress.
func (svc *Service) Claim(ctx context.Context, id string) (*models.Task, error) {
	task, err := svc.RetrieveTask(ctx, RetrieveTaskOptions{ID: &id})
	if err != nil {
		return nil, err
	}
	if task.Status == models.TaskStatusInProgress || task.Status == models.TaskStatusDone {
		return nil, errcodes.Conflict("Task is " + string(task.Status) + ".")
	}

	now := time.Now()
	task.Status = models.TaskStatusInProgress
	task.ClaimedAt = &now
	task.Attempts++
	if err := svc.update(ctx, task, "status", "claimed_at", "attempts"); err != nil {
		return nil, err
	}
	return task, nil
}

func (svc *Service) Complete(ctx context.Context, task *models.Task) error {
	task.Status = models.TaskStatusDone
	task.LastError = nil
	return svc.update(ctx, task, "status", "last_error")
}

func (svc *Service) Fail(ctx context.Context, task *models.Task, cause error) error {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	if len(msg) > maxErrorLen {
		msg = msg[:maxErrorLen]
	}
	task.Status = models.TaskStatusFailed
	task.LastError = &msg
	return svc.update(ctx, task, "status", "last_error")
}

// Requeue puts a failed task back to todo for an operator-driven retry.
func (svc *Service) Requeue(ctx context.Context, id string) (*models.Task, error) {
	task, err := svc.RetrieveTask(ctx, RetrieveTaskOptions{ID: &id})
	if err != nil {
		return nil, err
	}
	if task.Status != models.TaskStatusFailed {
		return nil, errcodes.Conflict("Only failed tasks can be retried.")
	}
	task.Status = models.TaskStatusTodo
	task.ClaimedAt = nil
	if err := svc.update(ctx, task, "status", "claimed_at"); err != nil {
		return nil, err
	}
	return task, nil
}

// ReleaseStale returns in_progress tasks whose lease started before
// now-lease to todo. A crashed worker leaves such tasks behind.
func (svc *Service) ReleaseStale(ctx context.Context, lease time.Duration) (int, error) {
	cutoff := time.Now().Add(-lease)
	res, err := svc.db.
		NewUpdate().
		Model((*models.Task)(nil)).
		Set("status = ?", models.TaskStatusTodo).
		Set("claimed_at = NULL").
		Set("updated_at = ?", time.Now()).
		Where("status = ?", models.TaskStatusInProgress).
		WhereGroup(" AND ", func(q *bun.UpdateQuery) *bun.UpdateQuery {
			return q.Where("claimed_at IS NULL").WhereOr("claimed_at < ?", cutoff)
		}).
		Exec(ctx)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (svc *Service) RetrieveTask(ctx context.Context, opts RetrieveTaskOptions) (*models.Task, error) {
	task := &models.Task{}

	q := svc.db.
		NewSelect().
		Model(task)

	if opts.ID != nil {
		q = q.Where("t.id = ?", *opts.ID)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Task")
		}
		return nil, errors.WithStack(err)
	}

	return task, nil
}

func (svc *Service) ListTasks(ctx context.Context, opts ListTasksOptions) ([]*models.Task, error) {
	t, _, err := svc.listTasksWithTotal(ctx, opts)
	return t, errors.WithStack(err)
}

func (svc *Service) ListTasksWithTotal(ctx context.Context, opts ListTasksOptions) ([]*models.Task, int, error) {
	opts.includeTotal = true
	return svc.listTasksWithTotal(ctx, opts)
}

func (svc *Service) listTasksWithTotal(ctx context.Context, opts ListTasksOptions) ([]*models.Task, int, error) {
	tasks := []*models.Task{}
	var total int
	var err error

	q := svc.db.
		NewSelect().
		Model(&tasks).
		OrderExpr("t.created_at ASC, t.rowid ASC")

	if opts.Limit != nil {
		q = q.Limit(*opts.Limit)
	}
	if opts.Offset != nil {
		q = q.Offset(*opts.Offset)
	}
	if len(opts.Statuses) > 0 {
		q = q.Where("t.status IN (?)", bun.In(opts.Statuses))
	}
	if opts.Type != nil {
		q = q.Where("t.type = ?", *opts.Type)
	}

	if opts.includeTotal {
		total, err = q.ScanAndCount(ctx)
	} else {
		err = q.Scan(ctx)
	}
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}

	return tasks, total, nil
}

// Reset deletes every task and task log.
func (svc *Service) Reset(ctx context.Context) error {
	return svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewDelete().Model((*models.TaskLog)(nil)).Where("1 = 1").Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = tx.NewDelete().Model((*models.Task)(nil)).Where("1 = 1").Exec(ctx)
		return errors.WithStack(err)
	})
}

func (svc *Service) update(ctx context.Context, task *models.Task, columns ...string) error {
	task.UpdatedAt = time.Now()
	columns = append(columns, "updated_at")

	res, err := svc.db.
		NewUpdate().
		Model(task).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errcodes.NotFound("Task")
	}
	return nil
}
