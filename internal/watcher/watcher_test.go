package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestWatcher_DetectsWrite(t *testing.T) {
	dir := t.TempDir()
	w, err := New(0, zerolog.Nop())
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, w.Watch(dir))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Run(ctx)

	file := filepath.Join(dir, "session.json")
	require.NoError(t, os.WriteFile(file, []byte(`{}`), 0o644))

	ev, ok := w.NextTimeout(2 * time.Second)
	require.True(t, ok)
	require.Equal(t, file, ev.Path)
}

func TestWatcher_TryNext_EmptyQueueIsNonBlocking(t *testing.T) {
	w, err := New(0, zerolog.Nop())
	require.NoError(t, err)
	defer w.Stop()

	_, ok := w.TryNext()
	require.False(t, ok)
}

func TestWatcher_UnwatchIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	w, err := New(0, zerolog.Nop())
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, w.Unwatch(dir)) // never watched
	require.NoError(t, w.Watch(dir))
	require.NoError(t, w.Unwatch(dir))
	require.NoError(t, w.Unwatch(dir)) // already removed
}
