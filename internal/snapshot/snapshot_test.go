package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileYieldsEmptySnapshot(t *testing.T) {
	dir := t.TempDir()

	files, err := Load(filepath.Join(dir, "does-not-exist.json"))
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestLoad_NonRegularFileYieldsEmptySnapshot(t *testing.T) {
	dir := t.TempDir()

	files, err := Load(dir) // a directory, not a regular file
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestLoad_ParseFailureIsFatal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestStoreLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	original := Files{
		"a.txt": {Mtime: 100, Size: 5, Hash: Hash{1, 2, 3}, State: StateCreated},
		"b/c.txt": {
			Mtime: 200, Size: 0, Hash: Hash{}, State: StateEdited,
		},
	}

	require.NoError(t, Store(path, original))

	loaded, err := Load(path)
	require.NoError(t, err)

	require.Len(t, loaded, 2)
	for p, entry := range loaded {
		assert.Equal(t, StateUnchanged, entry.State, "path %s", p)
		assert.Equal(t, original[p].Mtime, entry.Mtime)
		assert.Equal(t, original[p].Size, entry.Size)
		assert.Equal(t, original[p].Hash, entry.Hash)
	}
}

func TestStore_ForcesUnchangedRegardlessOfInputState(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	in := Files{"x": {State: StateDeleted}}
	require.NoError(t, Store(path, in))

	out, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, StateUnchanged, out["x"].State)
}

func TestStorePreserving_KeepsStateForPreservedPaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	in := Files{
		"synced.txt":     {State: StateCreated},
		"incomplete.txt": {State: StateEdited},
	}

	require.NoError(t, StorePreserving(path, in, map[string]bool{"incomplete.txt": true}))

	out, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, StateUnchanged, out["synced.txt"].State)
	assert.Equal(t, StateEdited, out["incomplete.txt"].State)
}

func TestHash_MarshalsAsDecimalByteArray(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	h := Hash{}
	h[0] = 0xFF
	h[19] = 1

	require.NoError(t, Store(path, Files{"f": {Hash: h}}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "255")
	assert.NotContains(t, string(raw), "base64")
}

func TestClone_IsIndependentCopy(t *testing.T) {
	original := Files{"a": {Mtime: 1}}
	clone := original.Clone()
	clone["a"] = FileEntry{Mtime: 2}

	assert.Equal(t, int64(1), original["a"].Mtime)
	assert.Equal(t, int64(2), clone["a"].Mtime)
}
