package reconcile

import (
	"context"
	"database/sql"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/zxarchive/zxmirror/pkg/catalog"
	"github.com/zxarchive/zxmirror/pkg/config"
	"github.com/zxarchive/zxmirror/pkg/download"
	"github.com/zxarchive/zxmirror/pkg/errcodes"
	"github.com/zxarchive/zxmirror/pkg/files"
	"github.com/zxarchive/zxmirror/pkg/migrations"
	"github.com/zxarchive/zxmirror/pkg/models"
	"github.com/zxarchive/zxmirror/pkg/placement"
	"github.com/zxarchive/zxmirror/pkg/products"
	"github.com/zxarchive/zxmirror/pkg/releases"
	"github.com/zxarchive/zxmirror/pkg/tasks"
)

type fakeCatalog struct {
	products []*catalog.Product
	releases []*catalog.Release
	err      error
}

func feedOf[T any](items []*T, err error) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		for _, item := range items {
			if !yield(item, nil) {
				return
			}
		}
		if err != nil {
			yield(nil, err)
		}
	}
}

func (f *fakeCatalog) Products(context.Context) iter.Seq2[*catalog.Product, error] {
	return feedOf(f.products, f.err)
}

func (f *fakeCatalog) Releases(context.Context) iter.Seq2[*catalog.Release, error] {
	return feedOf(f.releases, f.err)
}

func (f *fakeCatalog) ReleasesByProduct(_ context.Context, productID int) iter.Seq2[*catalog.Release, error] {
	var out []*catalog.Release
	for _, r := range f.releases {
		if r.ProdID.Int() == productID {
			out = append(out, r)
		}
	}
	return feedOf(out, f.err)
}

type testContext struct {
	ctx     context.Context
	db      *bun.DB
	root    string
	catalog *fakeCatalog
	engine  *Engine

	productService *products.Service
	releaseService *releases.Service
	fileService    *files.Service
	taskService    *tasks.Service
}

func newTestContext(t *testing.T) *testContext {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() {
		db.Close()
	})
	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	cfg := config.NewForTest()
	cfg.ArchiveRoot = t.TempDir()

	log := logger.New()
	cat := &fakeCatalog{}
	pipeline := placement.New(cfg, db, download.New(cfg, log))

	return &testContext{
		ctx:     log.WithContext(context.Background()),
		db:      db,
		root:    cfg.ArchiveRoot,
		catalog: cat,
		engine:  New(cfg, db, cat, pipeline),

		productService: products.NewService(db),
		releaseService: releases.NewService(db),
		fileService:    files.NewService(db),
		taskService:    tasks.NewService(db),
	}
}

func (tc *testContext) createProduct(t *testing.T, id int, modified int64) {
	t.Helper()
	require.NoError(t, tc.productService.CreateProduct(tc.ctx, &models.Product{
		ID:             id,
		Title:          "Product",
		SanitizedTitle: "Product",
		DateModified:   modified,
	}))
}

func (tc *testContext) createRelease(t *testing.T, id, productID int, modified int64) {
	t.Helper()
	require.NoError(t, tc.releaseService.CreateRelease(tc.ctx, &models.Release{
		ID:           id,
		ProductID:    productID,
		Title:        "Release",
		DateModified: modified,
	}))
}

func (tc *testContext) createFile(t *testing.T, id, releaseID int, md5 string) *models.File {
	t.Helper()
	f := &models.File{ID: id, ReleaseID: releaseID, MD5: md5, Type: "tap", OriginalFileName: "game.tap"}
	require.NoError(t, tc.fileService.CreateFile(tc.ctx, f))
	return f
}

func (tc *testContext) productIDs(t *testing.T) []int {
	t.Helper()
	ids, err := tc.productService.ListProductIDs(tc.ctx)
	require.NoError(t, err)
	return ids
}

// queued returns "type:target" for every task, in queue order.
func (tc *testContext) queued(t *testing.T) []string {
	t.Helper()
	list, err := tc.taskService.ListTasks(tc.ctx, tasks.ListTasksOptions{})
	require.NoError(t, err)
	out := make([]string, 0, len(list))
	for _, task := range list {
		target := ""
		if task.TargetID != nil {
			target = *task.TargetID
		}
		out = append(out, string(task.Type)+":"+target)
	}
	return out
}

func remoteProduct(id int, title string, modified int) *catalog.Product {
	return &catalog.Product{
		ID:           catalog.FlexInt(id),
		Title:        title,
		DateModified: catalog.FlexInt(modified),
	}
}

func remoteRelease(id, productID, modified int, fileIDs ...int) *catalog.Release {
	r := &catalog.Release{
		ID:           catalog.FlexInt(id),
		ProdID:       catalog.FlexInt(productID),
		Title:        "Release",
		DateModified: catalog.FlexInt(modified),
		Languages:    catalog.StringList{"en"},
	}
	for _, fid := range fileIDs {
		r.PlayableFiles = append(r.PlayableFiles, catalog.File{
			ID:       catalog.FlexInt(fid),
			MD5:      "ABCDEF",
			Type:     "TZX",
			FileName: catalog.FlexString("game.tzx"),
		})
	}
	return r
}

func TestSyncProducts_Completeness(t *testing.T) {
	tc := newTestContext(t)
	tc.createProduct(t, 2, 100)
	tc.createProduct(t, 3, 100)
	tc.createProduct(t, 4, 100)

	tc.catalog.products = []*catalog.Product{
		remoteProduct(1, "The Hobbit", 50),
		remoteProduct(2, "Renamed", 200),
		remoteProduct(3, "Unchanged", 100),
	}

	require.NoError(t, tc.engine.SyncProducts(tc.ctx))

	// 4 is queued for deletion, not deleted during the pass.
	assert.Equal(t, []int{1, 2, 3, 4}, tc.productIDs(t))
	assert.Equal(t, []string{
		"check_prod_releases:1",
		"check_prod_releases:2",
		"delete_prod:4",
	}, tc.queued(t))

	id := 1
	created, err := tc.productService.RetrieveProduct(tc.ctx, products.RetrieveProductOptions{ID: &id})
	require.NoError(t, err)
	assert.Equal(t, "Hobbit, The", created.SanitizedTitle)

	id = 2
	updated, err := tc.productService.RetrieveProduct(tc.ctx, products.RetrieveProductOptions{ID: &id})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)
	assert.EqualValues(t, 200, updated.DateModified)

	id = 3
	unchanged, err := tc.productService.RetrieveProduct(tc.ctx, products.RetrieveProductOptions{ID: &id})
	require.NoError(t, err)
	assert.Equal(t, "Product", unchanged.Title)

	require.NoError(t, tc.engine.DeleteProduct(tc.ctx, 4))
	assert.Equal(t, []int{1, 2, 3}, tc.productIDs(t))
}

func TestSyncProducts_FeedErrorSkipsDeletions(t *testing.T) {
	tc := newTestContext(t)
	tc.createProduct(t, 4, 100)

	tc.catalog.products = []*catalog.Product{remoteProduct(1, "Exolon", 1)}
	tc.catalog.err = errors.New("connection reset")

	err := tc.engine.SyncProducts(tc.ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")

	assert.Equal(t, []int{1, 4}, tc.productIDs(t))
	assert.Equal(t, []string{"check_prod_releases:1"}, tc.queued(t))
}

func TestSyncProducts_RecordErrorDoesNotAbortPass(t *testing.T) {
	tc := newTestContext(t)
	tc.createProduct(t, 5, 100)

	_, err := tc.db.Exec(`CREATE TRIGGER reject_product BEFORE INSERT ON products
		WHEN NEW.id = 2 BEGIN SELECT RAISE(ABORT, 'rejected by trigger'); END`)
	require.NoError(t, err)

	tc.catalog.products = []*catalog.Product{
		remoteProduct(1, "Exolon", 1),
		remoteProduct(2, "Cybernoid", 1),
		remoteProduct(3, "Zynaps", 1),
	}

	err = tc.engine.SyncProducts(tc.ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "product 2")
	assert.Contains(t, err.Error(), "rejected by trigger")

	assert.Equal(t, []int{1, 3, 5}, tc.productIDs(t))
	assert.Equal(t, []string{
		"check_prod_releases:1",
		"check_prod_releases:3",
		"delete_prod:5",
	}, tc.queued(t))
}

func TestSyncProducts_ChangedProductRequeuesReleaseFiles(t *testing.T) {
	tc := newTestContext(t)
	tc.createProduct(t, 1, 10)
	tc.createRelease(t, 10, 1, 1)
	tc.createRelease(t, 11, 1, 1)
	tc.createProduct(t, 2, 10)
	tc.createRelease(t, 20, 2, 1)

	tc.catalog.products = []*catalog.Product{
		remoteProduct(1, "Renamed Game", 20),
		remoteProduct(2, "Product", 10),
	}
	tc.catalog.releases = []*catalog.Release{
		remoteRelease(10, 1, 1, 100),
		remoteRelease(11, 1, 1, 110),
		remoteRelease(20, 2, 1, 200),
	}

	require.NoError(t, tc.engine.SyncProducts(tc.ctx))
	assert.Equal(t, []string{
		"check_prod_releases:1",
		"check_release_files:10",
		"check_release_files:11",
	}, tc.queued(t))

	// The releases themselves are unchanged, so the product pass adds nothing.
	require.NoError(t, tc.engine.SyncReleasesByProduct(tc.ctx, 1))
	assert.Len(t, tc.queued(t), 3)
}

func TestSyncProducts_CategoryAndYear(t *testing.T) {
	tc := newTestContext(t)
	p := remoteProduct(7, "Exolon", 1)
	p.Year = 1987
	p.LegalStatus = models.LegalStatusAllowed
	p.Publishers = catalog.StringList{"Hewson"}
	p.CategoriesInfo = []catalog.Category{{ID: 3, Title: "Arcade"}, {ID: 9, Title: "Shooter"}}
	tc.catalog.products = []*catalog.Product{p}

	require.NoError(t, tc.engine.SyncProducts(tc.ctx))

	id := 7
	got, err := tc.productService.RetrieveProduct(tc.ctx, products.RetrieveProductOptions{ID: &id})
	require.NoError(t, err)
	require.NotNil(t, got.Year)
	assert.Equal(t, 1987, *got.Year)
	require.NotNil(t, got.CategoryTitle)
	assert.Equal(t, "Arcade", *got.CategoryTitle)
	assert.Equal(t, 3, *got.CategoryID)
	assert.Equal(t, "Hewson", got.Publishers)
}

func TestSyncReleases(t *testing.T) {
	tc := newTestContext(t)
	tc.createProduct(t, 1, 1)
	tc.createRelease(t, 13, 1, 1)

	tc.catalog.releases = []*catalog.Release{
		remoteRelease(10, 1, 5, 100, 101),
		remoteRelease(11, 99, 5, 110),
		remoteRelease(12, 1, 5),
	}

	require.NoError(t, tc.engine.SyncReleases(tc.ctx))

	ids, err := tc.releaseService.ListReleaseIDs(tc.ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{10, 13}, ids)

	releaseID := 10
	list, err := tc.fileService.ListFiles(tc.ctx, files.ListFilesOptions{ReleaseID: &releaseID})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "tzx", list[0].Type)
	assert.Equal(t, "abcdef", list[0].MD5)
	assert.Equal(t, "game.tzx", list[0].OriginalFileName)

	assert.Equal(t, []string{
		"check_release_files:10",
		"delete_release:13",
	}, tc.queued(t))
}

func TestSyncReleases_ChangedReleaseUpdatesFiles(t *testing.T) {
	tc := newTestContext(t)
	tc.createProduct(t, 1, 1)
	tc.createRelease(t, 10, 1, 1)
	tc.createFile(t, 100, 10, "old")
	tc.createFile(t, 101, 10, "abcdef")

	tc.catalog.releases = []*catalog.Release{remoteRelease(10, 1, 2, 100, 102)}

	require.NoError(t, tc.engine.SyncReleases(tc.ctx))

	id := 100
	f, err := tc.fileService.RetrieveFile(tc.ctx, files.RetrieveFileOptions{ID: &id})
	require.NoError(t, err)
	assert.Equal(t, "abcdef", f.MD5)
	assert.Equal(t, "tzx", f.Type)

	id = 102
	_, err = tc.fileService.RetrieveFile(tc.ctx, files.RetrieveFileOptions{ID: &id})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"delete_release_file:101",
		"check_release_files:10",
	}, tc.queued(t))

	// An unchanged revision is a no-op.
	require.NoError(t, tc.engine.SyncReleases(tc.ctx))
	assert.Len(t, tc.queued(t), 2)
}

func TestSyncReleasesByProduct(t *testing.T) {
	tc := newTestContext(t)
	tc.createProduct(t, 1, 1)
	tc.createProduct(t, 2, 1)
	tc.createRelease(t, 10, 1, 1)
	tc.createRelease(t, 20, 2, 1)

	tc.catalog.releases = []*catalog.Release{remoteRelease(21, 2, 1, 210)}

	require.NoError(t, tc.engine.SyncReleasesByProduct(tc.ctx, 1))
	assert.Equal(t, []string{"delete_release:10"}, tc.queued(t))
}

type deleteRecorder struct {
	tables []string
}

func (*deleteRecorder) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (r *deleteRecorder) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	if !strings.HasPrefix(event.Query, "DELETE FROM ") {
		return
	}
	table := strings.Fields(event.Query)[2]
	table = strings.Trim(table, `"`)
	if table == "file_paths" {
		return
	}
	r.tables = append(r.tables, table)
}

func TestDeleteProduct_CascadesBottomUp(t *testing.T) {
	tc := newTestContext(t)
	tc.createProduct(t, 1, 1)
	tc.createRelease(t, 10, 1, 1)
	tc.createRelease(t, 11, 1, 1)

	var onDisk []string
	for i, row := range []struct{ id, release int }{{100, 10}, {101, 10}, {102, 11}} {
		f := tc.createFile(t, row.id, row.release, "")
		rel := filepath.ToSlash(filepath.Join("ZX Spectrum", "Misc", "P", "Product", "f"+string(rune('0'+i))+".tap"))
		full := filepath.Join(tc.root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte("x"), 0644))
		require.NoError(t, tc.fileService.UpdatePlacement(tc.ctx, f, filepath.Base(rel), []string{rel}))
		onDisk = append(onDisk, full)
	}

	recorder := &deleteRecorder{}
	tc.db.AddQueryHook(recorder)

	require.NoError(t, tc.engine.DeleteProduct(tc.ctx, 1))

	assert.Equal(t, []string{"files", "files", "files", "releases", "releases", "products"}, recorder.tables)
	for _, full := range onDisk {
		assert.NoFileExists(t, full)
	}
	assert.NoDirExists(t, filepath.Join(tc.root, "ZX Spectrum"))
	assert.Empty(t, tc.productIDs(t))

	id := 100
	_, err := tc.fileService.RetrieveFile(tc.ctx, files.RetrieveFileOptions{ID: &id})
	assert.True(t, errcodes.IsNotFound(err))
}

func TestDeleteRelease(t *testing.T) {
	tc := newTestContext(t)
	tc.createProduct(t, 1, 1)
	tc.createRelease(t, 10, 1, 1)
	tc.createFile(t, 100, 10, "")

	require.NoError(t, tc.engine.DeleteRelease(tc.ctx, 10))

	ids, err := tc.releaseService.ListReleaseIDs(tc.ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Equal(t, []int{1}, tc.productIDs(t))
}

func TestBuildTitles(t *testing.T) {
	tc := newTestContext(t)
	require.NoError(t, tc.productService.CreateProduct(tc.ctx, &models.Product{
		ID:             1,
		Title:          "The Hobbit",
		SanitizedTitle: "The Hobbit",
	}))
	require.NoError(t, tc.productService.CreateProduct(tc.ctx, &models.Product{
		ID:             2,
		Title:          "Elite",
		SanitizedTitle: "Elite",
	}))
	tc.createRelease(t, 10, 1, 1)

	changed, err := tc.engine.BuildTitles(tc.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	id := 1
	p, err := tc.productService.RetrieveProduct(tc.ctx, products.RetrieveProductOptions{ID: &id})
	require.NoError(t, err)
	assert.Equal(t, "Hobbit, The", p.SanitizedTitle)
	assert.Equal(t, []string{"check_release_files:10"}, tc.queued(t))
}

func TestSyncProducts_DecodesMarkup(t *testing.T) {
	tc := newTestContext(t)
	p := remoteProduct(8, "Dizzy &amp; the <b>Yolkfolk</b>", 1)
	tc.catalog.products = []*catalog.Product{p}

	require.NoError(t, tc.engine.SyncProducts(tc.ctx))

	id := 8
	got, err := tc.productService.RetrieveProduct(tc.ctx, products.RetrieveProductOptions{ID: &id})
	require.NoError(t, err)
	assert.Equal(t, "Dizzy & the Yolkfolk", got.Title)
}
