// Package catalog reads the remote product and release exports as lazily
// paged feeds.
package catalog

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/zxarchive/zxmirror/pkg/config"
	"golang.org/x/time/rate"
)

const (
	exportProducts = "zxProd"
	exportReleases = "zxRelease"

	statusSuccess = "success"
)

var (
	ErrUnexpectedResponse = errors.New("unexpected catalog response")
	ErrTruncatedFeed      = errors.New("catalog feed ended before its total")
)

type Client struct {
	baseURL   string
	pageSize  int
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
}

func New(cfg *config.Config) *Client {
	limit := rate.Inf
	if cfg.CatalogRequestsPerSecond > 0 {
		limit = rate.Limit(cfg.CatalogRequestsPerSecond)
	}
	pageSize := cfg.CatalogPageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.CatalogBaseURL, "/"),
		pageSize:  pageSize,
		userAgent: cfg.UserAgent,
		http:      &http.Client{Timeout: 60 * time.Second},
		limiter:   rate.NewLimiter(limit, 1),
	}
}

// Products yields every product in ascending id order.
func (c *Client) Products(ctx context.Context) iter.Seq2[*Product, error] {
	return feed[Product](ctx, c, exportProducts, "")
}

// Releases yields every release in ascending id order.
func (c *Client) Releases(ctx context.Context) iter.Seq2[*Release, error] {
	return feed[Release](ctx, c, exportReleases, "")
}

// ReleasesByProduct yields the releases of one product.
func (c *Client) ReleasesByProduct(ctx context.Context, productID int) iter.Seq2[*Release, error] {
	return feed[Release](ctx, c, exportReleases, fmt.Sprintf("/prodId:%d", productID))
}

type envelope struct {
	ResponseStatus string                     `json:"responseStatus"`
	TotalAmount    *FlexInt                   `json:"totalAmount"`
	ResponseData   map[string]json.RawMessage `json:"responseData"`
}

// feed pages through one export. A page error is yielded once and ends the
// feed, so a consumer never mistakes a truncated feed for a complete one.
// When the export reports totalAmount, paging continues until that many
// records arrived, whatever page size the server actually honours.
func feed[T any](ctx context.Context, c *Client, export, filter string) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		start := 0
		for {
			records, total, err := fetchPage[T](ctx, c, export, filter, start)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, r := range records {
				if !yield(r, nil) {
					return
				}
			}

			start += len(records)
			if total != nil {
				if start >= int(*total) {
					return
				}
				if len(records) == 0 {
					yield(nil, errors.Wrapf(ErrTruncatedFeed, "%s: %d of %d records", export, start, int(*total)))
					return
				}
				continue
			}
			if len(records) == 0 || len(records) < c.pageSize {
				return
			}
		}
	}
}

func (c *Client) pageURL(export, filter string, start int) string {
	return fmt.Sprintf("%s/api/language:eng/export:%s/preset:offline/sortParameter:id/sortOrder:asc%s/limit:%d/start:%d",
		c.baseURL, export, filter, c.pageSize, start)
}

func fetchPage[T any](ctx context.Context, c *Client, export, filter string, start int) ([]*T, *FlexInt, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, nil, errors.WithStack(err)
	}

	url := c.pageURL(export, filter, start)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to create catalog request")
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to fetch %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, errors.Wrapf(ErrUnexpectedResponse, "GET %s: HTTP %d", url, resp.StatusCode)
	}

	env := envelope{}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, nil, errors.Wrapf(err, "failed to decode %s", url)
	}
	if env.ResponseStatus != statusSuccess {
		return nil, nil, errors.Wrapf(ErrUnexpectedResponse, "GET %s: status %q", url, env.ResponseStatus)
	}

	raw, ok := env.ResponseData[export]
	if !ok || len(raw) == 0 {
		return nil, env.TotalAmount, nil
	}
	records := []*T{}
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, nil, errors.Wrapf(err, "failed to decode %s records", export)
	}
	return records, env.TotalAmount, nil
}
