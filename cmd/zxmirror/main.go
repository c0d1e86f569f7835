package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/signals"
	"github.com/uptrace/bun"
	"github.com/urfave/cli/v2"
	"github.com/zxarchive/zxmirror/pkg/catalog"
	"github.com/zxarchive/zxmirror/pkg/config"
	"github.com/zxarchive/zxmirror/pkg/database"
	"github.com/zxarchive/zxmirror/pkg/download"
	"github.com/zxarchive/zxmirror/pkg/migrations"
	"github.com/zxarchive/zxmirror/pkg/models"
	"github.com/zxarchive/zxmirror/pkg/placement"
	"github.com/zxarchive/zxmirror/pkg/reconcile"
	"github.com/zxarchive/zxmirror/pkg/server"
	"github.com/zxarchive/zxmirror/pkg/tasks"
	"github.com/zxarchive/zxmirror/pkg/version"
	"github.com/zxarchive/zxmirror/pkg/worker"
	"golang.org/x/sync/errgroup"
)

// env is everything a command needs, built once in the app's Before hook.
type env struct {
	log    logger.Logger
	cfg    *config.Config
	db     *bun.DB
	worker *worker.Worker
	tasks  *tasks.Service
}

func main() {
	log := logger.New()
	e := &env{log: log}

	app := &cli.App{
		Name:    "zxmirror",
		Usage:   "mirror the ZX Spectrum software catalog into a local archive",
		Version: version.Version,
		Before: func(c *cli.Context) error {
			return e.setup(c.Context)
		},
		After: func(_ *cli.Context) error {
			if e.db == nil {
				return nil
			}
			return errors.WithStack(e.db.Close())
		},
		Commands: []*cli.Command{
			{
				Name:  "update",
				Usage: "sync the whole catalog and run tasks until the queue is empty",
				Action: func(c *cli.Context) error {
					if _, err := e.tasks.Enqueue(c.Context, models.TaskTypeSyncProds, nil); err != nil {
						return err
					}
					return e.runUntilEmpty(c.Context)
				},
			},
			{
				Name:  "resume",
				Usage: "return interrupted tasks to the queue and run until it is empty",
				Action: func(c *cli.Context) error {
					released, err := e.tasks.ReleaseStale(c.Context, 0)
					if err != nil {
						return err
					}
					e.log.Info("requeued interrupted tasks", logger.Data{"tasks": released})
					return e.runUntilEmpty(c.Context)
				},
			},
			{
				Name:  "daemon",
				Usage: "poll the task queue until interrupted, optionally serving the ops API",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "server", Usage: "serve the ops API (overrides server_enabled)"},
				},
				Action: func(c *cli.Context) error {
					serve := e.cfg.ServerEnabled
					if c.IsSet("server") {
						serve = c.Bool("server")
					}
					return e.daemon(c.Context, serve)
				},
			},
			{
				Name:      "run-task",
				Usage:     "run one task by id",
				ArgsUsage: "<task id>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return cli.ShowSubcommandHelp(c)
					}
					return e.worker.RunTask(c.Context, c.Args().First())
				},
			},
			{
				Name:      "enqueue",
				Usage:     "add a task to the queue",
				ArgsUsage: "<type> [target id]",
				Action: func(c *cli.Context) error {
					if c.NArg() < 1 || c.NArg() > 2 {
						return cli.ShowSubcommandHelp(c)
					}
					var target *string
					if c.NArg() == 2 {
						t := c.Args().Get(1)
						target = &t
					}
					task, err := e.tasks.Enqueue(c.Context, models.TaskType(c.Args().First()), target)
					if err != nil {
						return err
					}
					fmt.Println(task.ID)
					return nil
				},
			},
			{
				Name:      "retry",
				Usage:     "put a failed task back in the queue",
				ArgsUsage: "<task id>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return cli.ShowSubcommandHelp(c)
					}
					task, err := e.tasks.Requeue(c.Context, c.Args().First())
					if err != nil {
						return err
					}
					e.log.Info("task requeued", logger.Data{"task_id": task.ID, "type": task.Type})
					return nil
				},
			},
			{
				Name:  "reset",
				Usage: "delete every task and rebuild the database from scratch",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "yes", Usage: "confirm the reset"},
				},
				Action: func(c *cli.Context) error {
					if !c.Bool("yes") {
						return errors.New("reset deletes all mirrored metadata; pass --yes to confirm")
					}
					if err := e.tasks.Reset(c.Context); err != nil {
						return err
					}
					group, err := migrations.Reset(c.Context, e.db)
					if err != nil {
						return err
					}
					e.log.Info("database reset", logger.Data{"group_id": group.ID})
					return nil
				},
			},
			{
				Name:  "tasks",
				Usage: "list tasks",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{Name: "status", Usage: "only tasks with this status (repeatable)"},
					&cli.StringFlag{Name: "type", Usage: "only tasks of this type"},
					&cli.IntFlag{Name: "limit", Value: 50},
				},
				Action: func(c *cli.Context) error {
					return e.listTasks(c)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Err(err).Fatal("zxmirror error")
	}
}

func (e *env) setup(ctx context.Context) error {
	e.log.Info("starting zxmirror", logger.Data{"version": version.Version})

	cfg, err := config.New()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.CacheDir, 0755); err != nil {
		return errors.Wrapf(err, "failed to create cache directory: %s", cfg.CacheDir)
	}
	if err := os.MkdirAll(cfg.ArchiveRoot, 0755); err != nil {
		return errors.Wrapf(err, "failed to create archive root: %s", cfg.ArchiveRoot)
	}

	db, err := database.New(cfg)
	if err != nil {
		return err
	}

	group, err := migrations.BringUpToDate(ctx, db)
	if err != nil {
		db.Close()
		return err
	}
	if group.ID == 0 {
		e.log.Info("no new migrations to run")
	} else {
		e.log.Info("migrated to new group", logger.Data{"group_id": group.ID, "migration_names": group.Migrations.String()})
	}

	downloader := download.New(cfg, e.log)
	pipeline := placement.New(cfg, db, downloader)
	engine := reconcile.New(cfg, db, catalog.New(cfg), pipeline)

	e.cfg = cfg
	e.db = db
	e.tasks = tasks.NewService(db)
	e.worker = worker.New(cfg, db, worker.NewHandlers(cfg, engine, pipeline))
	return nil
}

func (e *env) runUntilEmpty(ctx context.Context) error {
	start := time.Now()
	ran, err := e.worker.RunUntilEmpty(ctx)
	e.log.Info("task queue drained", logger.Data{"tasks": ran, "duration_ms": time.Since(start).Milliseconds()})
	if err != nil {
		return err
	}

	failed, err := e.tasks.ListTasks(ctx, tasks.ListTasksOptions{
		Statuses: []models.TaskStatus{models.TaskStatusFailed},
	})
	if err != nil {
		return err
	}
	if len(failed) > 0 {
		e.log.Warn("some tasks failed; inspect them with `zxmirror tasks --status failed`", logger.Data{"failed": len(failed)})
	}
	return nil
}

// daemon runs the worker, and the ops server when asked to, until a signal
// arrives. The task in flight is allowed to finish.
func (e *env) daemon(ctx context.Context, serve bool) error {
	graceful := signals.Setup()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		select {
		case <-graceful:
			e.log.Info("starting graceful shutdown")
			cancel()
		case <-ctx.Done():
		}
		return nil
	})

	g.Go(func() error {
		e.log.Info("worker started")
		err := e.worker.Run(ctx)
		e.log.Info("worker shutdown")
		return err
	})

	if serve {
		srv, err := server.New(e.cfg, e.db)
		if err != nil {
			return err
		}

		g.Go(func() error {
			lc := net.ListenConfig{}
			listener, err := lc.Listen(ctx, "tcp", srv.Addr)
			if err != nil {
				return errors.Wrap(err, "failed to bind port")
			}
			e.log.Info("server started", logger.Data{"addr": listener.Addr().String()})

			err = srv.Serve(listener)
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errors.WithStack(err)
			}
			e.log.Info("server stopped")
			return nil
		})

		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, done := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer done()
			return errors.WithStack(srv.Shutdown(shutdownCtx))
		})
	}

	return g.Wait()
}

func (e *env) listTasks(c *cli.Context) error {
	limit := c.Int("limit")
	opts := tasks.ListTasksOptions{Limit: &limit}
	for _, s := range c.StringSlice("status") {
		opts.Statuses = append(opts.Statuses, models.TaskStatus(s))
	}
	if t := c.String("type"); t != "" {
		taskType := models.TaskType(t)
		opts.Type = &taskType
	}

	list, total, err := e.tasks.ListTasksWithTotal(c.Context, opts)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tTARGET\tSTATUS\tATTEMPTS\tUPDATED\tERROR")
	for _, t := range list {
		target, lastErr := "-", ""
		if t.TargetID != nil {
			target = *t.TargetID
		}
		if t.LastError != nil {
			lastErr = *t.LastError
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n", t.ID, t.Type, target, t.Status, t.Attempts, t.UpdatedAt.Format(time.RFC3339), lastErr)
	}
	if err := w.Flush(); err != nil {
		return errors.WithStack(err)
	}
	fmt.Fprintf(c.App.Writer, "%d of %d tasks\n", len(list), total)
	return nil
}
