// Package testgen builds the file fixtures the mirror's tests download,
// extract and place: tape images and the container formats releases ship in.
package testgen

import (
	"os"
	"path/filepath"
	"testing"
)

// Entry is one member of a generated container. Names ending in "/" or with
// Dir set are written as directories.
type Entry struct {
	Name    string
	Content []byte
	Dir     bool
}

// WriteFile creates a file with the given content in the specified directory.
// Returns the full path to the created file.
func WriteFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("failed to write file %s: %v", path, err)
	}
	return path
}

// ReadFile returns the content of path as a string.
func ReadFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read file %s: %v", path, err)
	}
	return string(b)
}
