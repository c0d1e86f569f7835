// Package download fetches catalog files over HTTP and verifies them against
// their published MD5 before they are allowed into the archive.
package download

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/zxarchive/zxmirror/pkg/config"
	"github.com/zxarchive/zxmirror/pkg/fileutils"
)

var (
	ErrEmptyDownload    = errors.New("downloaded file is empty")
	ErrChecksumMismatch = errors.New("downloaded file checksum mismatch")
	ErrRetriesExhausted = errors.New("download retries exhausted")
)

const partSuffix = ".part"

// StatusError is a non-success HTTP response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d", e.URL, e.StatusCode)
}

// Temporary reports whether retrying the request could succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests || e.StatusCode == http.StatusRequestTimeout
}

type Downloader struct {
	client      *http.Client
	timeout     time.Duration
	retryLimit  int
	retryDelay  time.Duration
	userAgent   string
	urlTemplate string
	log         logger.Logger
}

func New(cfg *config.Config, log logger.Logger) *Downloader {
	retryLimit := cfg.DownloadRetryLimit
	if retryLimit < 1 {
		retryLimit = 1
	}
	return &Downloader{
		client:      &http.Client{},
		timeout:     cfg.DownloadTimeout,
		retryLimit:  retryLimit,
		retryDelay:  cfg.DownloadRetryDelay,
		userAgent:   cfg.UserAgent,
		urlTemplate: cfg.FileURLTemplate,
		log:         log,
	}
}

// FileURL expands the configured file URL template for one catalog file.
func (d *Downloader) FileURL(releaseID, fileID int) string {
	return strings.NewReplacer(
		"{releaseId}", strconv.Itoa(releaseID),
		"{fileId}", strconv.Itoa(fileID),
	).Replace(d.urlTemplate)
}

type Result struct {
	// Downloaded is false when the primary target already held the
	// expected bytes.
	Downloaded bool
	// Copied lists the secondary targets that were created.
	Copied []string
}

// Download makes sure every target holds the file published at url. The
// first target is the primary: it is fetched (unless it already verifies)
// and the others are copied from it when missing. Integrity failures are
// returned immediately; transport failures are retried.
func (d *Downloader) Download(ctx context.Context, url string, targets []string, expectedMD5 string) (*Result, error) {
	if len(targets) == 0 {
		return nil, errors.New("no download targets")
	}
	primary := targets[0]
	result := &Result{}

	ok, err := Verify(primary, expectedMD5)
	if err != nil {
		return nil, err
	}
	if !ok {
		if err := d.fetchWithRetry(ctx, url, primary, expectedMD5); err != nil {
			return nil, err
		}
		result.Downloaded = true
	}

	for _, target := range targets[1:] {
		if fileutils.Exists(target) {
			continue
		}
		if err := fileutils.CopyFile(primary, target); err != nil {
			return result, errors.Wrapf(err, "failed to copy %s to %s", primary, target)
		}
		result.Copied = append(result.Copied, target)
	}

	return result, nil
}

// Verify reports whether path is a non-empty regular file whose MD5 equals
// expectedMD5. An empty expectedMD5 accepts any non-empty file.
func Verify(path, expectedMD5 string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.WithStack(err)
	}
	if !info.Mode().IsRegular() || info.Size() == 0 {
		return false, nil
	}
	if expectedMD5 == "" {
		return true, nil
	}
	sum, err := fileutils.FileMD5(path)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(sum, expectedMD5), nil
}

func (d *Downloader) fetchWithRetry(ctx context.Context, url, dest, expectedMD5 string) error {
	var lastErr error
	for attempt := 1; attempt <= d.retryLimit; attempt++ {
		lastErr = d.fetch(ctx, url, dest, expectedMD5)
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) || ctx.Err() != nil {
			return lastErr
		}

		d.log.Warn("download attempt failed", logger.Data{
			"url":     url,
			"attempt": attempt,
			"limit":   d.retryLimit,
			"error":   lastErr.Error(),
		})

		if attempt == d.retryLimit {
			break
		}
		select {
		case <-ctx.Done():
			return errors.WithStack(ctx.Err())
		case <-time.After(d.retryDelay):
		}
	}
	return errors.Wrapf(ErrRetriesExhausted, "%s after %d attempts: %v", url, d.retryLimit, lastErr)
}

func retryable(err error) bool {
	if errors.Is(err, ErrEmptyDownload) || errors.Is(err, ErrChecksumMismatch) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}
	return true
}

// fetch streams url into dest+".part", verifies it and renames it over dest.
// A failed fetch never touches dest.
func (d *Downloader) fetch(ctx context.Context, url, dest, expectedMD5 string) error {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrap(err, "failed to create download request")
	}
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to download file")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.WithStack(&StatusError{URL: url, StatusCode: resp.StatusCode})
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return errors.WithStack(err)
	}

	tmp := dest + partSuffix
	out, err := os.Create(tmp)
	if err != nil {
		return errors.Wrap(err, "failed to create temp file")
	}

	h := md5.New()
	n, err := io.Copy(io.MultiWriter(out, h), resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, "failed to write downloaded file")
	}

	if n == 0 {
		os.Remove(tmp)
		return errors.Wrapf(ErrEmptyDownload, "%s", url)
	}
	actual := hex.EncodeToString(h.Sum(nil))
	if expectedMD5 != "" && !strings.EqualFold(actual, expectedMD5) {
		os.Remove(tmp)
		return errors.Wrapf(ErrChecksumMismatch, "%s: expected %s, got %s", url, expectedMD5, actual)
	}

	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return errors.WithStack(err)
	}
	return nil
}
