package download

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zxarchive/zxmirror/pkg/config"
)

func md5Hex(data []byte) string {
	h := md5.Sum(data)
	return hex.EncodeToString(h[:])
}

func newTestDownloader(t *testing.T) *Downloader {
	t.Helper()
	cfg := config.NewForTest()
	cfg.DownloadRetryLimit = 3
	cfg.DownloadTimeout = 2 * time.Second
	return New(cfg, logger.New())
}

func TestFileURL(t *testing.T) {
	d := newTestDownloader(t)
	assert.Equal(t, "https://zxart.ee/zxfile/id:12/fileId:34/", d.FileURL(12, 34))
}

func TestDownload_Success(t *testing.T) {
	body := []byte("ZX tape image")
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Write(body)
	}))
	defer server.Close()

	dir := t.TempDir()
	primary := filepath.Join(dir, "ZX Spectrum", "Misc", "A", "Game", "game.tap")
	secondary := filepath.Join(dir, "TS-Config", "Misc", "A", "Game", "game.tap")

	d := newTestDownloader(t)
	result, err := d.Download(context.Background(), server.URL, []string{primary, secondary}, md5Hex(body))
	require.NoError(t, err)
	assert.True(t, result.Downloaded)
	assert.Equal(t, []string{secondary}, result.Copied)

	for _, p := range []string{primary, secondary} {
		got, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.Equal(t, body, got)
	}
	_, err = os.Stat(primary + partSuffix)
	assert.True(t, os.IsNotExist(err))

	// A verified primary is not fetched again.
	result, err = d.Download(context.Background(), server.URL, []string{primary, secondary}, md5Hex(body))
	require.NoError(t, err)
	assert.False(t, result.Downloaded)
	assert.Empty(t, result.Copied)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestDownload_RetriesTransientFailures(t *testing.T) {
	body := []byte("disk image")
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write(body)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "game.trd")
	result, err := newTestDownloader(t).Download(context.Background(), server.URL, []string{dest}, md5Hex(body))
	require.NoError(t, err)
	assert.True(t, result.Downloaded)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestDownload_RetriesExhausted(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "game.trd")
	_, err := newTestDownloader(t).Download(context.Background(), server.URL, []string{dest}, "abc")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRetriesExhausted))
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}

func TestDownload_NotFoundIsNotRetried(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := newTestDownloader(t).Download(context.Background(), server.URL, []string{filepath.Join(t.TempDir(), "x.tap")}, "")
	require.Error(t, err)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestDownload_ChecksumMismatchIsFatal(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte("tampered"))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "game.tap")
	require.NoError(t, os.WriteFile(dest, []byte("previous good copy"), 0644))

	_, err := newTestDownloader(t).Download(context.Background(), server.URL, []string{dest}, md5Hex([]byte("expected")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrChecksumMismatch))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "previous good copy", string(got))
	_, err = os.Stat(dest + partSuffix)
	assert.True(t, os.IsNotExist(err))
}

func TestDownload_EmptyBodyIsFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "game.tap")
	_, err := newTestDownloader(t).Download(context.Background(), server.URL, []string{dest}, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyDownload))
	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}

func TestDownload_TimeoutIsRetried(t *testing.T) {
	body := []byte("slow")
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
			return
		}
		w.Write(body)
	}))
	defer server.Close()

	d := newTestDownloader(t)
	d.timeout = 100 * time.Millisecond

	dest := filepath.Join(t.TempDir(), "slow.tap")
	_, err := d.Download(context.Background(), server.URL, []string{dest}, md5Hex(body))
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestVerify(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.tap")

	ok, err := Verify(path, "")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))
	ok, err = Verify(path, "5D41402ABC4B2A76B9719D911017C592")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Verify(path, "00000000000000000000000000000000")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = Verify(dir, "")
	require.NoError(t, err)
	assert.False(t, ok)
}
