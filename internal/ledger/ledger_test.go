package ledger

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	l, err := Open(context.Background(), ":memory:", logger)
	require.NoError(t, err)

	t.Cleanup(func() { _ = l.Close() })

	return l
}

func TestBeginSession_AssignsIDAndInProgressOutcome(t *testing.T) {
	l := openTestLedger(t)

	id, err := l.BeginSession(context.Background(), "alice")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	rec, err := l.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "alice", rec.Username)
	assert.Equal(t, OutcomeInProgress, rec.Outcome)
	assert.False(t, rec.EndedAt.Valid)
}

func TestCompleteSession_RecordsTotalsAndOutcome(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	id, err := l.BeginSession(ctx, "bob")
	require.NoError(t, err)

	require.NoError(t, l.CompleteSession(ctx, id, 1024, 2048, 3, 4, OutcomeCompleted))

	rec, err := l.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, rec.EndedAt.Valid)
	assert.Equal(t, int64(1024), rec.BytesUploaded)
	assert.Equal(t, int64(2048), rec.BytesDownloaded)
	assert.Equal(t, int64(3), rec.FilesUploaded)
	assert.Equal(t, int64(4), rec.FilesDownloaded)
	assert.Equal(t, OutcomeCompleted, rec.Outcome)
}

func TestListByUsername_ReturnsOnlyThatUsersSessions(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	id1, err := l.BeginSession(ctx, "carol")
	require.NoError(t, err)
	require.NoError(t, l.CompleteSession(ctx, id1, 0, 0, 0, 0, OutcomeCompleted))

	id2, err := l.BeginSession(ctx, "carol")
	require.NoError(t, err)
	require.NoError(t, l.CompleteSession(ctx, id2, 0, 0, 0, 0, OutcomeFailed))

	_, err = l.BeginSession(ctx, "dave")
	require.NoError(t, err)

	records, err := l.ListByUsername(ctx, "carol")
	require.NoError(t, err)
	require.Len(t, records, 2)

	for _, rec := range records {
		assert.Equal(t, "carol", rec.Username)
	}
}

func TestListByUsername_EmptyForUnknownUser(t *testing.T) {
	l := openTestLedger(t)

	records, err := l.ListByUsername(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, records)
}
