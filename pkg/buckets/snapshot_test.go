package buckets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot(t *testing.T) {
	root := t.TempDir()
	for _, dir := range []string{
		"ZX Spectrum/Arcade/A/Atic Atac",
		"ZX Spectrum/Arcade/A/Avalon",
		"ZX Spectrum/Misc/0-9/3D Tanx",
		"ZX81/Misc/M/Mazogs",
	} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, dir), 0755))
	}

	snap, err := TakeSnapshot(root, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Platforms["ZX Spectrum"]["Arcade"]["A"])
	assert.Equal(t, 1, snap.Platforms["ZX Spectrum"]["Misc"]["0-9"])
	assert.Equal(t, 1, snap.Platforms["ZX81"]["Misc"]["M"])

	path := filepath.Join(t.TempDir(), "cache", "buckets.json")
	require.NoError(t, WriteSnapshot(path, snap))

	read, err := ReadSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, snap.Platforms, read.Platforms)
}

func TestSnapshot_MissingRoot(t *testing.T) {
	snap, err := TakeSnapshot(filepath.Join(t.TempDir(), "missing"), nil)
	require.NoError(t, err)
	assert.Empty(t, snap.Platforms)
}
