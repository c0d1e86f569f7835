package worker

import (
	"context"
	"path/filepath"

	"github.com/robinjoseph08/golib/logger"
	"github.com/zxarchive/zxmirror/pkg/buckets"
	"github.com/zxarchive/zxmirror/pkg/config"
	"github.com/zxarchive/zxmirror/pkg/placement"
	"github.com/zxarchive/zxmirror/pkg/reconcile"
)

// Handlers holds the operation behind every task type. Targeted handlers
// receive the task's target id.
type Handlers struct {
	SyncProds         func(ctx context.Context) error
	SyncReleases      func(ctx context.Context) error
	CheckProdReleases func(ctx context.Context, productID int) error
	CheckReleaseFiles func(ctx context.Context, releaseID int) error
	DeleteRelease     func(ctx context.Context, releaseID int) error
	DeleteReleaseFile func(ctx context.Context, fileID int) error
	DeleteProd        func(ctx context.Context, productID int) error
	RetryFile         func(ctx context.Context, fileID int) error
	BuildTitles       func(ctx context.Context) error
	CheckFailedFiles  func(ctx context.Context) error
}

// NewHandlers wires every task type to the reconciliation engine and the
// placement pipeline.
func NewHandlers(cfg *config.Config, engine *reconcile.Engine, pipeline *placement.Pipeline) Handlers {
	return Handlers{
		SyncProds:         engine.SyncProducts,
		SyncReleases:      engine.SyncReleases,
		CheckProdReleases: engine.SyncReleasesByProduct,
		CheckReleaseFiles: pipeline.SyncReleaseFiles,
		DeleteRelease:     engine.DeleteRelease,
		DeleteReleaseFile: engine.DeleteReleaseFile,
		DeleteProd:        engine.DeleteProduct,
		RetryFile:         pipeline.RetryFile,
		BuildTitles: func(ctx context.Context) error {
			if _, err := engine.BuildTitles(ctx); err != nil {
				return err
			}
			return writeSnapshot(ctx, cfg)
		},
		CheckFailedFiles: func(ctx context.Context) error {
			n, err := pipeline.CheckFailedFiles(ctx)
			if err != nil {
				return err
			}
			logger.FromContext(ctx).Info("queued unplaced files for retry", logger.Data{"files": n})
			return nil
		},
	}
}

func writeSnapshot(ctx context.Context, cfg *config.Config) error {
	snap, err := buckets.TakeSnapshot(cfg.ArchiveRoot, buckets.FSCounter{})
	if err != nil {
		return err
	}
	path := filepath.Join(cfg.CacheDir, buckets.SnapshotFileName)
	if err := buckets.WriteSnapshot(path, snap); err != nil {
		return err
	}
	logger.FromContext(ctx).Info("wrote bucket snapshot", logger.Data{"path": path, "platforms": len(snap.Platforms)})
	return nil
}
