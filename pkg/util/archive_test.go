package util

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZipEntryNames(t *testing.T) {
	target := filepath.Join(t.TempDir(), "bundle.zip")

	err := ZipBytes(map[string][]byte{
		"readme.md":        []byte("# readme"),
		"assets/logo.png":  {0x89, 0x50, 0x4e, 0x47},
		"assets/icon.png":  {0x89, 0x50, 0x4e, 0x47},
		"notes/daily/a.md": []byte("a"),
	}, target)
	require.NoError(t, err)

	names, err := ZipEntryNames(target)
	require.NoError(t, err)

	// Nested paths collapse to their first segment
	// 嵌套路径折叠为第一段
	assert.Equal(t, []string{"assets", "notes", "readme.md"}, names)
}

func TestZipEntryNamesEmptyArchive(t *testing.T) {
	target := filepath.Join(t.TempDir(), "empty.zip")

	require.NoError(t, ZipBytes(map[string][]byte{}, target))

	names, err := ZipEntryNames(target)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestZipEntryNamesNotAnArchive(t *testing.T) {
	target := filepath.Join(t.TempDir(), "plain.bin")
	require.NoError(t, ZipBytes(map[string][]byte{"x": []byte("x")}, target))

	_, err := ZipEntryNames(filepath.Join(t.TempDir(), "missing.zip"))
	assert.Error(t, err)
}
