// Package reconcile diffs the remote catalog feeds against the local store,
// applies creates and updates in feed order and queues everything else as
// follow-up tasks.
package reconcile

import (
	"context"
	stderrors "errors"
	"iter"
	"sort"
	"strconv"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/uptrace/bun"
	"github.com/zxarchive/zxmirror/pkg/catalog"
	"github.com/zxarchive/zxmirror/pkg/config"
	"github.com/zxarchive/zxmirror/pkg/files"
	"github.com/zxarchive/zxmirror/pkg/models"
	"github.com/zxarchive/zxmirror/pkg/placement"
	"github.com/zxarchive/zxmirror/pkg/products"
	"github.com/zxarchive/zxmirror/pkg/releases"
	"github.com/zxarchive/zxmirror/pkg/tasks"
)

// Catalog is the remote side of a reconciliation pass.
type Catalog interface {
	Products(ctx context.Context) iter.Seq2[*catalog.Product, error]
	Releases(ctx context.Context) iter.Seq2[*catalog.Release, error]
	ReleasesByProduct(ctx context.Context, productID int) iter.Seq2[*catalog.Release, error]
}

type Engine struct {
	catalog   Catalog
	placement *placement.Pipeline

	productService *products.Service
	releaseService *releases.Service
	fileService    *files.Service
	taskService    *tasks.Service

	titleMaxLength int
}

func New(cfg *config.Config, db *bun.DB, cat Catalog, pipeline *placement.Pipeline) *Engine {
	return &Engine{
		catalog:   cat,
		placement: pipeline,

		productService: products.NewService(db),
		releaseService: releases.NewService(db),
		fileService:    files.NewService(db),
		taskService:    tasks.NewService(db),

		titleMaxLength: cfg.TitleMaxLength,
	}
}

// workingSet holds the local ids not yet seen in the feed.
type workingSet map[int]struct{}

func newWorkingSet(ids []int) workingSet {
	ws := make(workingSet, len(ids))
	for _, id := range ids {
		ws[id] = struct{}{}
	}
	return ws
}

func (ws workingSet) remaining() []int {
	ids := make([]int, 0, len(ws))
	for id := range ws {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// pass walks one feed. Record errors are collected and the walk continues; a
// feed error ends it. Leftover ids are only handed to onMissing when the feed
// was read to the end.
func pass[T any](ctx context.Context, feed iter.Seq2[*T, error], ws workingSet, apply func(*T) error, onMissing func(id int) error) error {
	log := logger.FromContext(ctx)

	var errs []error
	applied := 0
	for record, err := range feed {
		if err != nil {
			errs = append(errs, errors.Wrap(err, "feed interrupted, deletions skipped"))
			return stderrors.Join(errs...)
		}
		if err := apply(record); err != nil {
			errs = append(errs, err)
			continue
		}
		applied++
	}

	missing := ws.remaining()
	for _, id := range missing {
		if err := onMissing(id); err != nil {
			errs = append(errs, err)
		}
	}

	log.Info("reconciliation pass finished", logger.Data{
		"records": applied,
		"missing": len(missing),
		"errors":  len(errs),
	})
	return stderrors.Join(errs...)
}

func (e *Engine) enqueue(ctx context.Context, taskType models.TaskType, id int) error {
	target := strconv.Itoa(id)
	_, err := e.taskService.Enqueue(ctx, taskType, &target)
	return err
}
