package worker

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/uptrace/bun"
	"github.com/zxarchive/zxmirror/pkg/config"
	"github.com/zxarchive/zxmirror/pkg/models"
	"github.com/zxarchive/zxmirror/pkg/tasklogs"
	"github.com/zxarchive/zxmirror/pkg/tasks"
)

var (
	ErrUnknownTaskType = errors.New("unknown task type")
	ErrMissingTarget   = errors.New("task has no usable target id")
)

// Worker runs queued tasks one at a time, oldest first.
type Worker struct {
	config   *config.Config
	log      logger.Logger
	handlers Handlers

	taskService    *tasks.Service
	taskLogService *tasklogs.Service

	cancel context.CancelFunc
	done   chan struct{}
	mu     sync.Mutex
}

func New(cfg *config.Config, db *bun.DB, handlers Handlers) *Worker {
	return &Worker{
		config:   cfg,
		log:      logger.New(),
		handlers: handlers,

		taskService:    tasks.NewService(db),
		taskLogService: tasklogs.NewService(db),
	}
}

// RunUntilEmpty returns tasks whose lease expired to the queue, then claims
// and runs todo tasks until none is left. A failing task is marked failed and
// the loop moves on. It returns how many tasks ran.
func (w *Worker) RunUntilEmpty(ctx context.Context) (int, error) {
	return w.drain(ctx, nil)
}

// RunTask claims and runs one specific task, returning the task's own error.
func (w *Worker) RunTask(ctx context.Context, id string) error {
	task, err := w.taskService.Claim(ctx, id)
	if err != nil {
		return err
	}
	return w.process(ctx, task)
}

// Run polls the queue every WorkerPollInterval until ctx is done. The task in
// flight when ctx ends is allowed to finish.
func (w *Worker) Run(ctx context.Context) error {
	interval := w.config.WorkerPollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			if _, err := w.drain(context.WithoutCancel(ctx), ctx.Done()); err != nil {
				w.log.Err(err).Error("task queue error")
			}
			timer.Reset(interval)
		}
	}
}

func (w *Worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})
	go func() {
		defer close(w.done)
		_ = w.Run(ctx)
	}()
}

// Shutdown stops claiming new tasks and waits for the current one.
func (w *Worker) Shutdown() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel == nil {
		return
	}
	w.cancel()
	<-w.done
	w.cancel = nil
}

func (w *Worker) drain(ctx context.Context, stop <-chan struct{}) (int, error) {
	released, err := w.taskService.ReleaseStale(ctx, w.config.TaskLeaseTimeout)
	if err != nil {
		return 0, err
	}
	if released > 0 {
		w.log.Warn("returned stale tasks to the queue", logger.Data{"tasks": released})
	}

	ran := 0
	for {
		select {
		case <-stop:
			return ran, nil
		default:
		}
		if err := ctx.Err(); err != nil {
			return ran, errors.WithStack(err)
		}

		task, err := w.taskService.ClaimNext(ctx)
		if err != nil {
			return ran, err
		}
		if task == nil {
			return ran, nil
		}

		// The task's outcome is recorded on the task itself.
		_ = w.process(ctx, task)
		ran++
	}
}

// process runs a claimed task and records its terminal status.
func (w *Worker) process(ctx context.Context, task *models.Task) error {
	id, err := uuid.NewRandom()
	if err != nil {
		return errors.WithStack(err)
	}
	data := logger.Data{"task_id": task.ID, "type": task.Type, "attempt": task.Attempts}
	if task.TargetID != nil {
		data["target_id"] = *task.TargetID
	}
	log := w.log.ID(id.String()).Root(data)
	ctx = log.WithContext(ctx)
	tlog := w.taskLogService.NewTaskLogger(ctx, task.ID, log)

	tlog.Info("task started", nil)
	start := time.Now()

	err = w.dispatch(ctx, task)
	elapsed := logger.Data{"duration_ms": time.Since(start).Milliseconds()}
	if err != nil {
		tlog.Error("task failed", err, elapsed)
		if ferr := w.taskService.Fail(ctx, task, err); ferr != nil {
			log.Err(ferr).Error("failed to mark task failed")
		}
		return err
	}

	if err := w.taskService.Complete(ctx, task); err != nil {
		log.Err(err).Error("failed to mark task done")
		return err
	}
	tlog.Info("task done", elapsed)
	return nil
}

// dispatch matches every task type explicitly; a type outside the known set
// is a hard failure.
func (w *Worker) dispatch(ctx context.Context, task *models.Task) error {
	h := w.handlers

	switch task.Type {
	case models.TaskTypeSyncProds:
		if err := h.SyncProds(ctx); err != nil {
			return err
		}
		_, err := w.taskService.Enqueue(ctx, models.TaskTypeSyncReleases, nil)
		return err
	case models.TaskTypeSyncReleases:
		return h.SyncReleases(ctx)
	case models.TaskTypeCheckProdReleases:
		return withTarget(ctx, task, h.CheckProdReleases)
	case models.TaskTypeCheckReleaseFiles:
		return withTarget(ctx, task, h.CheckReleaseFiles)
	case models.TaskTypeDeleteRelease:
		return withTarget(ctx, task, h.DeleteRelease)
	case models.TaskTypeDeleteReleaseFile:
		return withTarget(ctx, task, h.DeleteReleaseFile)
	case models.TaskTypeDeleteProd:
		return withTarget(ctx, task, h.DeleteProd)
	case models.TaskTypeRetryFile:
		return withTarget(ctx, task, h.RetryFile)
	case models.TaskTypeBuildTitles:
		return h.BuildTitles(ctx)
	case models.TaskTypeCheckFailedFiles:
		return h.CheckFailedFiles(ctx)
	default:
		return errors.Wrapf(ErrUnknownTaskType, "%q", task.Type)
	}
}

func withTarget(ctx context.Context, task *models.Task, fn func(context.Context, int) error) error {
	if task.TargetID == nil {
		return errors.Wrapf(ErrMissingTarget, "%s task %s", task.Type, task.ID)
	}
	id, err := strconv.Atoi(*task.TargetID)
	if err != nil {
		return errors.Wrapf(ErrMissingTarget, "%s task %s: %q", task.Type, task.ID, *task.TargetID)
	}
	return fn(ctx, id)
}
