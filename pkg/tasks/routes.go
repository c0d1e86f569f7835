package tasks

import (
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

// RegisterRoutesWithGroup registers task routes on a pre-configured group.
func RegisterRoutesWithGroup(g *echo.Group, db *bun.DB) {
	taskService := NewService(db)

	h := &handler{
		taskService: taskService,
	}

	g.GET("", h.list)
	g.POST("", h.enqueue)
	g.GET("/:id", h.retrieve)
	g.POST("/:id/retry", h.retry)
}
