package tasklogs

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/zxarchive/zxmirror/pkg/tasks"
)

type handler struct {
	taskLogService *Service
	taskService    *tasks.Service
}

func (h *handler) listLogs(c echo.Context) error {
	ctx := c.Request().Context()
	taskID := c.Param("id")

	// Verify task exists
	task, err := h.taskService.RetrieveTask(ctx, tasks.RetrieveTaskOptions{
		ID: &taskID,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	params := ListTaskLogsQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	logs, err := h.taskLogService.ListTaskLogs(ctx, ListTaskLogsOptions{
		TaskID:  taskID,
		AfterID: params.AfterID,
		Levels:  params.Level,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Logs interface{} `json:"logs"`
		Task interface{} `json:"task"`
	}{logs, task}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}
