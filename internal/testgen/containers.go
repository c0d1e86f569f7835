package testgen

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Zip returns a zip archive holding entries, in order.
func Zip(t *testing.T, entries []Entry) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		f, err := zw.Create(e.Name)
		if err != nil {
			t.Fatalf("failed to create zip entry %s: %v", e.Name, err)
		}
		if isDir(e) {
			continue
		}
		if _, err := f.Write(e.Content); err != nil {
			t.Fatalf("failed to write zip entry %s: %v", e.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to close zip: %v", err)
	}
	return buf.Bytes()
}

// Tar returns an uncompressed tar stream holding entries, in order.
func Tar(t *testing.T, entries []Entry) []byte {
	t.Helper()

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.Name, Mode: 0644, Size: int64(len(e.Content)), Typeflag: tar.TypeReg}
		if isDir(e) {
			hdr = &tar.Header{Name: e.Name, Mode: 0755, Typeflag: tar.TypeDir}
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("failed to write tar header %s: %v", e.Name, err)
		}
		if isDir(e) {
			continue
		}
		if _, err := tw.Write(e.Content); err != nil {
			t.Fatalf("failed to write tar entry %s: %v", e.Name, err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("failed to close tar: %v", err)
	}
	return buf.Bytes()
}

// TarGz returns a gzip-compressed tar stream.
func TarGz(t *testing.T, entries []Entry) []byte {
	t.Helper()

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(Tar(t, entries)); err != nil {
		t.Fatalf("failed to gzip tar: %v", err)
	}
	if err := gw.Close(); err != nil {
		t.Fatalf("failed to close gzip: %v", err)
	}
	return buf.Bytes()
}

// TarZst returns a zstd-compressed tar stream.
func TarZst(t *testing.T, entries []Entry) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	if err != nil {
		t.Fatalf("failed to create zstd writer: %v", err)
	}
	if _, err := zw.Write(Tar(t, entries)); err != nil {
		t.Fatalf("failed to zstd tar: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to close zstd: %v", err)
	}
	return buf.Bytes()
}

func isDir(e Entry) bool {
	return e.Dir || strings.HasSuffix(e.Name, "/")
}
