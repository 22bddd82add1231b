package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smd/internal/snapshot"
)

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()

	full := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestScan_NewFileIsCreated(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "hello")

	current, err := New(nil).Scan(context.Background(), dir, snapshot.Files{})
	require.NoError(t, err)

	require.Contains(t, current, "a.txt")
	assert.Equal(t, snapshot.StateCreated, current["a.txt"].State)
	assert.Equal(t, uint64(5), current["a.txt"].Size)
}

func TestScan_DeletedFileIsTagged(t *testing.T) {
	dir := t.TempDir()

	stored := snapshot.Files{"gone.txt": {State: snapshot.StateUnchanged, Mtime: 1}}

	current, err := New(nil).Scan(context.Background(), dir, stored)
	require.NoError(t, err)

	require.Contains(t, current, "gone.txt")
	assert.Equal(t, snapshot.StateDeleted, current["gone.txt"].State)
}

func TestScan_UnchangedWhenMtimeNotNewer(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "hello")

	full := filepath.Join(dir, "a.txt")
	info, err := os.Stat(full)
	require.NoError(t, err)

	stored := snapshot.Files{"a.txt": {State: snapshot.StateUnchanged, Mtime: info.ModTime().Unix()}}

	current, err := New(nil).Scan(context.Background(), dir, stored)
	require.NoError(t, err)

	assert.Equal(t, snapshot.StateUnchanged, current["a.txt"].State)
}

func TestScan_EditedWhenMtimeNewer(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "hello")

	stored := snapshot.Files{"a.txt": {State: snapshot.StateUnchanged, Mtime: 0}}

	current, err := New(nil).Scan(context.Background(), dir, stored)
	require.NoError(t, err)

	assert.Equal(t, snapshot.StateEdited, current["a.txt"].State)
}

func TestScan_SymlinksSkipped(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "real.txt", "hello")

	link := filepath.Join(dir, "link.txt")
	require.NoError(t, os.Symlink(filepath.Join(dir, "real.txt"), link))

	current, err := New(nil).Scan(context.Background(), dir, snapshot.Files{})
	require.NoError(t, err)

	assert.Contains(t, current, "real.txt")
	assert.NotContains(t, current, "link.txt")
}

// Testable Property 3: scanner totality.
func TestScan_Totality(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "new.txt", "x")

	stored := snapshot.Files{
		"new.txt":     {State: snapshot.StateUnchanged, Mtime: time.Now().Add(time.Hour).Unix()},
		"missing.txt": {State: snapshot.StateUnchanged},
	}

	current, err := New(nil).Scan(context.Background(), dir, stored)
	require.NoError(t, err)

	for path := range stored {
		assert.Contains(t, current, path)
	}
	assert.Contains(t, current, "new.txt")
}

func TestScan_UnreadableSubdirIsNonFatal(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "ok.txt", "fine")

	blocked := filepath.Join(dir, "blocked")
	require.NoError(t, os.MkdirAll(blocked, 0o755))
	writeFile(t, dir, "blocked/secret.txt", "hidden")
	require.NoError(t, os.Chmod(blocked, 0o000))
	t.Cleanup(func() { os.Chmod(blocked, 0o755) })

	current, err := New(nil).Scan(context.Background(), dir, snapshot.Files{})
	// Either no error (root can read anything) or a non-fatal accumulated error;
	// in both cases the scan must still see "ok.txt".
	_ = err
	assert.Contains(t, current, "ok.txt")
}

func TestScan_StateFileUnderStorageRootIsIncluded(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "smd_state.json", "{}")

	current, err := New(nil).Scan(context.Background(), dir, snapshot.Files{})
	require.NoError(t, err)
	assert.Contains(t, current, "smd_state.json")
}
