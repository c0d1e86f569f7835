package buckets

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type handler struct {
	archiveRoot string
	cacheDir    string
}

// retrieve serves the last snapshot written by build_titles. With ?live=true,
// or when no snapshot was written yet, the archive is counted on the spot.
func (h *handler) retrieve(c echo.Context) error {
	params := RetrieveSnapshotQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	if !params.Live {
		snap, err := ReadSnapshot(filepath.Join(h.cacheDir, SnapshotFileName))
		if err == nil {
			return errors.WithStack(c.JSON(http.StatusOK, snap))
		}
		if !errors.Is(err, os.ErrNotExist) {
			return errors.WithStack(err)
		}
	}

	snap, err := TakeSnapshot(h.archiveRoot, FSCounter{})
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusOK, snap))
}
