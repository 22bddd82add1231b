package cliutil

import (
	"context"
	"log/slog"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func discardLoggerForShutdown() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func TestShutdownContext_CancelsOnFirstSignal(t *testing.T) {
	ctx := ShutdownContext(context.Background(), discardLoggerForShutdown())

	require := assert.New(t)

	select {
	case <-ctx.Done():
		require.Fail("context canceled before any signal was sent")
	default:
	}

	require.NoError(syscall.Kill(os.Getpid(), syscall.SIGINT))

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		require.Fail("context was not canceled after SIGINT")
	}
}

func TestShutdownContext_CanceledWhenParentCanceled(t *testing.T) {
	parent, cancelParent := context.WithCancel(context.Background())
	ctx := ShutdownContext(parent, discardLoggerForShutdown())

	cancelParent()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("derived context was not canceled when parent was canceled")
	}
}
