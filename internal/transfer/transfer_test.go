package transfer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smd/internal/snapshot"
)

func TestReadWrite_RoundTrip(t *testing.T) {
	srcDir := t.TempDir()
	dstDir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "a.txt"), []byte("hello world"), 0o644))

	entry := snapshot.FileEntry{Size: uint64(len("hello world"))}

	unit, err := Read(srcDir, "a.txt", entry)
	require.NoError(t, err)
	assert.Equal(t, "a.txt", unit.Filename)
	assert.Equal(t, []byte("hello world"), unit.Data)

	require.NoError(t, Write(dstDir, unit))

	written, err := os.ReadFile(filepath.Join(dstDir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(written))
}

func TestWrite_CreatesParentDirectories(t *testing.T) {
	dstDir := t.TempDir()
	unit := Unit{Filename: "a/b/c.txt", Data: []byte("nested")}

	require.NoError(t, Write(dstDir, unit))

	written, err := os.ReadFile(filepath.Join(dstDir, "a/b/c.txt"))
	require.NoError(t, err)
	assert.Equal(t, "nested", string(written))
}

func TestWrite_RefusesPathEscape(t *testing.T) {
	dstDir := t.TempDir()
	unit := Unit{Filename: "../escape.txt", Data: []byte("x")}

	err := Write(dstDir, unit)
	require.Error(t, err)
}

func TestRead_SizeMismatchIsError(t *testing.T) {
	srcDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "a.txt"), []byte("short"), 0o644))

	_, err := Read(srcDir, "a.txt", snapshot.FileEntry{Size: 999})
	require.Error(t, err)
}

func TestRemove_MissingFileIsNotError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Remove(dir, "does-not-exist.txt"))
}

func TestRemove_DeletesExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	require.NoError(t, Remove(dir, "a.txt"))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
