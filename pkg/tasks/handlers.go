package tasks

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/zxarchive/zxmirror/pkg/models"
)

type handler struct {
	taskService *Service
}

func (h *handler) enqueue(c echo.Context) error {
	ctx := c.Request().Context()

	// Bind params.
	params := EnqueueTaskPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	task, err := h.taskService.Enqueue(ctx, models.TaskType(params.Type), params.TargetID)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, task))
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	task, err := h.taskService.RetrieveTask(ctx, RetrieveTaskOptions{
		ID: &id,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, task))
}

func (h *handler) retry(c echo.Context) error {
	ctx := c.Request().Context()

	task, err := h.taskService.Requeue(ctx, c.Param("id"))
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, task))
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	// Bind params.
	params := ListTasksQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	opts := ListTasksOptions{
		Limit:  &params.Limit,
		Offset: &params.Offset,
	}
	for _, s := range params.Status {
		opts.Statuses = append(opts.Statuses, models.TaskStatus(s))
	}
	if params.Type != nil {
		t := models.TaskType(*params.Type)
		opts.Type = &t
	}

	tasks, total, err := h.taskService.ListTasksWithTotal(ctx, opts)
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Tasks []*models.Task `json:"tasks"`
		Total int            `json:"total"`
	}{tasks, total}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}
