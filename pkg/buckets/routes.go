package buckets

import (
	"github.com/labstack/echo/v4"
	"github.com/zxarchive/zxmirror/pkg/config"
)

// RegisterRoutes registers the bucket occupancy report.
func RegisterRoutes(e *echo.Echo, cfg *config.Config) {
	h := &handler{
		archiveRoot: cfg.ArchiveRoot,
		cacheDir:    cfg.CacheDir,
	}

	e.GET("/buckets", h.retrieve)
}
