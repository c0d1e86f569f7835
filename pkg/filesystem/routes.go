package filesystem

import (
	"github.com/labstack/echo/v4"
	"github.com/zxarchive/zxmirror/pkg/config"
)

func RegisterRoutes(e *echo.Echo, cfg *config.Config) {
	h := &handler{
		filesystemService: NewService(cfg.ArchiveRoot),
	}

	e.GET("/archive", h.browse)
}
