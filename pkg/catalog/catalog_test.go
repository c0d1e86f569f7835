package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"sync"
	"testing"

	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zxarchive/zxmirror/pkg/config"
)

var startParam = regexp.MustCompile(`/limit:(\d+)/start:(\d+)$`)

type fakeCatalog struct {
	mu       sync.Mutex
	paths    []string
	products []map[string]any
	status   string
	// maxLimit caps the page size the server honours (0 means no cap).
	maxLimit int
	// total overrides the reported totalAmount; "-" omits it.
	total string
}

func (f *fakeCatalog) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.paths = append(f.paths, r.URL.Path)
	f.mu.Unlock()

	m := startParam.FindStringSubmatch(r.URL.Path)
	if m == nil {
		http.NotFound(w, r)
		return
	}
	limit, _ := strconv.Atoi(m[1])
	start, _ := strconv.Atoi(m[2])
	if f.maxLimit > 0 && limit > f.maxLimit {
		limit = f.maxLimit
	}

	end := start + limit
	if end > len(f.products) {
		end = len(f.products)
	}
	page := []map[string]any{}
	if start < len(f.products) {
		page = f.products[start:end]
	}

	status := f.status
	if status == "" {
		status = "success"
	}
	body := map[string]any{
		"responseStatus": status,
		"totalAmount":    strconv.Itoa(len(f.products)),
		"responseData":   map[string]any{"zxProd": page},
	}
	switch f.total {
	case "":
	case "-":
		delete(body, "totalAmount")
	default:
		body["totalAmount"] = f.total
	}
	_ = json.NewEncoder(w).Encode(body)
}

func newTestClient(t *testing.T, h http.Handler, pageSize int) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cfg := config.NewForTest()
	cfg.CatalogBaseURL = srv.URL
	cfg.CatalogPageSize = pageSize
	return New(cfg)
}

func collect[T any](t *testing.T, seq func(func(*T, error) bool)) ([]*T, error) {
	t.Helper()
	var out []*T
	for v, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
	return out, nil
}

func TestProducts_Pages(t *testing.T) {
	fake := &fakeCatalog{}
	for i := 1; i <= 5; i++ {
		fake.products = append(fake.products, map[string]any{
			"id":           strconv.Itoa(i),
			"title":        fmt.Sprintf("Prod %d", i),
			"dateModified": 1700000000 + i,
			"year":         nil,
		})
	}
	c := newTestClient(t, fake, 2)

	products, err := collect[Product](t, c.Products(context.Background()))
	require.NoError(t, err)
	require.Len(t, products, 5)
	for i, p := range products {
		assert.Equal(t, i+1, p.ID.Int())
		assert.Nil(t, p.Year.Ptr())
	}

	require.Len(t, fake.paths, 3)
	assert.Equal(t, "/api/language:eng/export:zxProd/preset:offline/sortParameter:id/sortOrder:asc/limit:2/start:0", fake.paths[0])
	assert.Contains(t, fake.paths[2], "/start:4")
}

func TestProducts_ExactMultipleStopsOnTotal(t *testing.T) {
	fake := &fakeCatalog{}
	for i := 1; i <= 4; i++ {
		fake.products = append(fake.products, map[string]any{"id": i, "title": "x"})
	}
	c := newTestClient(t, fake, 2)

	products, err := collect[Product](t, c.Products(context.Background()))
	require.NoError(t, err)
	assert.Len(t, products, 4)
	assert.Len(t, fake.paths, 2)
}

func TestProducts_ServerCapsPageSize(t *testing.T) {
	fake := &fakeCatalog{maxLimit: 2}
	for i := 1; i <= 5; i++ {
		fake.products = append(fake.products, map[string]any{"id": i, "title": "x"})
	}
	c := newTestClient(t, fake, 10)

	products, err := collect[Product](t, c.Products(context.Background()))
	require.NoError(t, err)
	require.Len(t, products, 5)
	assert.Equal(t, 5, products[4].ID.Int())
	require.Len(t, fake.paths, 3)
	assert.Contains(t, fake.paths[1], "/limit:10/start:2")
	assert.Contains(t, fake.paths[2], "/limit:10/start:4")
}

func TestProducts_EmptyPageBeforeTotal(t *testing.T) {
	fake := &fakeCatalog{total: "4"}
	fake.products = []map[string]any{{"id": 1, "title": "x"}, {"id": 2, "title": "y"}}
	c := newTestClient(t, fake, 5)

	products, err := collect[Product](t, c.Products(context.Background()))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTruncatedFeed)
	assert.Len(t, products, 2)
}

func TestProducts_ShortPageWithoutTotal(t *testing.T) {
	fake := &fakeCatalog{total: "-"}
	for i := 1; i <= 3; i++ {
		fake.products = append(fake.products, map[string]any{"id": i, "title": "x"})
	}
	c := newTestClient(t, fake, 2)

	products, err := collect[Product](t, c.Products(context.Background()))
	require.NoError(t, err)
	assert.Len(t, products, 3)
	assert.Len(t, fake.paths, 2)
}

func TestProducts_EarlyBreak(t *testing.T) {
	fake := &fakeCatalog{}
	for i := 1; i <= 10; i++ {
		fake.products = append(fake.products, map[string]any{"id": i, "title": "x"})
	}
	c := newTestClient(t, fake, 2)

	seen := 0
	for _, err := range c.Products(context.Background()) {
		require.NoError(t, err)
		seen++
		if seen == 3 {
			break
		}
	}
	assert.Equal(t, 3, seen)
	assert.Len(t, fake.paths, 2)
}

func TestProducts_NonSuccessStatus(t *testing.T) {
	fake := &fakeCatalog{status: "fail"}
	fake.products = []map[string]any{{"id": 1, "title": "x"}}
	c := newTestClient(t, fake, 2)

	_, err := collect[Product](t, c.Products(context.Background()))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnexpectedResponse)
}

func TestProducts_HTTPError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}), 2)

	_, err := collect[Product](t, c.Products(context.Background()))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnexpectedResponse)
}

func TestReleasesByProduct(t *testing.T) {
	var path string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_, _ = w.Write([]byte(`{
			"responseStatus": "success",
			"totalAmount": 1,
			"responseData": {"zxRelease": [{
				"id": "77",
				"title": "Elite",
				"prodId": 12,
				"languages": "en,ru",
				"publishers": ["Firebird", 42],
				"hardware": ["zx128", "ay"],
				"version": 1.1,
				"year": "1985",
				"releaseType": "original",
				"playableFiles": [{"id": "5", "md5": "ABC", "type": "tap", "fileName": "elite.tap"}]
			}]}
		}`))
	}), 10)

	releases, err := collect[Release](t, c.ReleasesByProduct(context.Background(), 12))
	require.NoError(t, err)
	require.Len(t, releases, 1)
	assert.Contains(t, path, "/export:zxRelease/")
	assert.Contains(t, path, "/prodId:12/")

	r := releases[0]
	assert.Equal(t, 77, r.ID.Int())
	assert.Equal(t, 12, r.ProdID.Int())
	assert.Equal(t, StringList{"en", "ru"}, r.Languages)
	assert.Equal(t, StringList{"Firebird", "42"}, r.Publishers)
	assert.Equal(t, "zx128,ay", r.Hardware.String())
	assert.Equal(t, "1.1", r.Version.String())
	assert.Equal(t, 1985, r.Year.Int())
	require.Len(t, r.PlayableFiles, 1)
	assert.Equal(t, 5, r.PlayableFiles[0].ID.Int())
	assert.Equal(t, "elite.tap", r.PlayableFiles[0].FileName.String())
}

func TestFlexInt(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{`12`, 12},
		{`"12"`, 12},
		{`null`, 0},
		{`""`, 0},
		{`"abc"`, 0},
		{`3.0`, 3},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var f FlexInt
			require.NoError(t, json.Unmarshal([]byte(tt.in), &f))
			assert.Equal(t, tt.want, f.Int())
		})
	}
}

func TestProduct_PrimaryCategory(t *testing.T) {
	p := &Product{}
	assert.Nil(t, p.PrimaryCategory())

	require.NoError(t, json.Unmarshal([]byte(`{"categoriesInfo":[{"id":"3","title":"Arcade"},{"id":4,"title":"Puzzle"}]}`), p))
	require.NotNil(t, p.PrimaryCategory())
	assert.Equal(t, "Arcade", p.PrimaryCategory().Title)
}
