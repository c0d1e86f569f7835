package tasklogs

import (
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
	"github.com/zxarchive/zxmirror/pkg/tasks"
)

// RegisterRoutes registers task log routes on the tasks group.
func RegisterRoutes(tasksGroup *echo.Group, db *bun.DB) {
	h := &handler{
		taskLogService: NewService(db),
		taskService:    tasks.NewService(db),
	}

	// GET /tasks/:id/logs
	tasksGroup.GET("/:id/logs", h.listLogs)
}
