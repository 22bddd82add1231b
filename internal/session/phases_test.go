package session

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smd/internal/smdproto"
	"smd/internal/snapshot"
	"smd/internal/transfer"
)

func discardLoggerForPhases() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestReceiveFiles_S6_UnknownFilenameDiscardedNotWritten covers spec.md §8
// scenario S6: an Upload frame naming a file absent from the negotiated
// todo is discarded rather than written, and the session continues.
func TestReceiveFiles_S6_UnknownFilenameDiscardedNotWritten(t *testing.T) {
	dir := t.TempDir()

	serverSide, clientSide := net.Pipe()
	defer serverSide.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	todo := snapshot.Files{
		"known.txt": {State: snapshot.StateCreated},
	}

	type result struct {
		totals transferTotals
		err    error
	}

	resultCh := make(chan result, 1)

	go func() {
		totals, err := receiveFiles(ctx, serverSide, dir, todo, smdproto.TypeUpload, discardLoggerForPhases())
		resultCh <- result{totals, err}
	}()

	unit := transfer.Unit{Filename: "unknown.txt", File: snapshot.FileEntry{Size: 6}, Data: []byte("sneaky")}

	data, err := json.Marshal(unit)
	require.NoError(t, err)
	require.NoError(t, smdproto.SendCtx(ctx, clientSide, smdproto.New(smdproto.TypeUpload, data)))
	require.NoError(t, smdproto.SendCtx(ctx, clientSide, smdproto.New(smdproto.TypeUpdated, nil)))

	r := <-resultCh
	require.NoError(t, r.err)
	assert.Equal(t, 0, r.totals.count)

	_, statErr := os.Stat(filepath.Join(dir, "unknown.txt"))
	assert.True(t, os.IsNotExist(statErr))

	// The one known.txt entry never arrived either, so it must be reported
	// missing rather than silently dropped.
	assert.Equal(t, []string{"known.txt"}, r.totals.missing)
}

// TestReceiveFiles_TracksAndWarnsOnMissingTodoEntries covers spec.md §9
// Open Question 3: a todo entry never uploaded before Updated is reported
// in totals.missing so the caller can avoid marking it Unchanged.
func TestReceiveFiles_TracksAndWarnsOnMissingTodoEntries(t *testing.T) {
	dir := t.TempDir()

	serverSide, clientSide := net.Pipe()
	defer serverSide.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	todo := snapshot.Files{
		"a.txt":       {State: snapshot.StateCreated},
		"b.txt":       {State: snapshot.StateEdited},
		"deleted.txt": {State: snapshot.StateDeleted},
	}

	type result struct {
		totals transferTotals
		err    error
	}

	resultCh := make(chan result, 1)

	go func() {
		totals, err := receiveFiles(ctx, serverSide, dir, todo, smdproto.TypeUpload, discardLoggerForPhases())
		resultCh <- result{totals, err}
	}()

	unit := transfer.Unit{Filename: "a.txt", File: snapshot.FileEntry{Size: 5}, Data: []byte("alpha")}

	data, err := json.Marshal(unit)
	require.NoError(t, err)
	require.NoError(t, smdproto.SendCtx(ctx, clientSide, smdproto.New(smdproto.TypeUpload, data)))
	require.NoError(t, smdproto.SendCtx(ctx, clientSide, smdproto.New(smdproto.TypeUpdated, nil)))

	r := <-resultCh
	require.NoError(t, r.err)
	assert.Equal(t, 1, r.totals.count)
	assert.Equal(t, []string{"b.txt"}, r.totals.missing)

	contents, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(contents))
}

func TestReceiveFiles_UnexpectedFrameTypeIsFatal(t *testing.T) {
	dir := t.TempDir()

	serverSide, clientSide := net.Pipe()
	defer serverSide.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resultCh := make(chan error, 1)

	go func() {
		_, err := receiveFiles(ctx, serverSide, dir, snapshot.Files{}, smdproto.TypeUpload, discardLoggerForPhases())
		resultCh <- err
	}()

	require.NoError(t, smdproto.SendCtx(ctx, clientSide, smdproto.New(smdproto.TypeDownload, nil)))

	err := <-resultCh
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected frame type")
}
