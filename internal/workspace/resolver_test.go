package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_RejectsBadUsernames(t *testing.T) {
	tests := []string{"", ".", "..", "a/b", "a\\b", "../escape", strings.Repeat("x", 256)}

	for _, username := range tests {
		t.Run(username, func(t *testing.T) {
			err := Validate(username)
			require.Error(t, err)
		})
	}
}

func TestValidate_AcceptsGoodUsernames(t *testing.T) {
	for _, username := range []string{"alice", "user_123", "bob-the-builder"} {
		assert.NoError(t, Validate(username))
	}
}

func TestResolve_CreatesDirectories(t *testing.T) {
	root := t.TempDir()

	ws, err := Resolve(root, "alice")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "alice"), ws.SyncDirectory)
	assert.Equal(t, filepath.Join(root, "alice", "storage"), ws.StorageDirectory)
	assert.Equal(t, filepath.Join(root, "alice", "smd_state.json"), ws.StateFilePath)

	info, err := os.Stat(ws.StorageDirectory)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestResolve_RejectsInvalidUsername(t *testing.T) {
	root := t.TempDir()

	_, err := Resolve(root, "../escape")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidUsername)
}

func TestResolveClient_UsesRootDirectlyAsSyncDirectory(t *testing.T) {
	root := t.TempDir()

	ws, err := ResolveClient(root, "alice")
	require.NoError(t, err)

	assert.Equal(t, root, ws.SyncDirectory)
	assert.Equal(t, filepath.Join(root, "storage"), ws.StorageDirectory)
	assert.Equal(t, filepath.Join(root, "smd_state.json"), ws.StateFilePath)
	assert.DirExists(t, ws.StorageDirectory)
}

func TestResolveClient_RejectsInvalidUsername(t *testing.T) {
	_, err := ResolveClient(t.TempDir(), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidUsername)
}

func TestResolve_IdempotentOnExistingDirectories(t *testing.T) {
	root := t.TempDir()

	_, err := Resolve(root, "alice")
	require.NoError(t, err)

	ws2, err := Resolve(root, "alice")
	require.NoError(t, err)
	assert.DirExists(t, ws2.StorageDirectory)
}
