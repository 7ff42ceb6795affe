package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatcherDetectsModificationViaPolling(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "watched.log")
	require.NoError(t, os.WriteFile(path, []byte("line one\n"), 0o644))

	w := newWatcher(nil)
	defer w.Shutdown()
	w.SetPollingInterval(20)

	notified := make(chan struct{}, 4)
	require.NoError(t, w.Add(path, func() {
		select {
		case notified <- struct{}{}:
		default:
		}
	}))

	time.Sleep(40 * time.Millisecond) // let the first stat baseline settle
	require.NoError(t, os.WriteFile(path, []byte("line one\nline two\n"), 0o644))

	select {
	case <-notified:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a change notification")
	}
}

func TestWatcherTransitionsOnRemoval(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "watched.log")
	require.NoError(t, os.WriteFile(path, []byte("x\n"), 0o644))

	w := newWatcher(nil)
	defer w.Shutdown()
	w.SetPollingInterval(20)

	notified := make(chan struct{}, 4)
	require.NoError(t, w.Add(path, func() {
		select {
		case notified <- struct{}{}:
		default:
		}
	}))

	time.Sleep(40 * time.Millisecond)
	require.NoError(t, os.Remove(path))

	select {
	case <-notified:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a removal notification")
	}

	w.mu.Lock()
	state := w.watches[mustAbs(t, path)].state
	w.mu.Unlock()
	require.Equal(t, FileRemoved, state)
}

func mustAbs(t *testing.T, path string) string {
	t.Helper()
	abs, err := filepath.Abs(path)
	require.NoError(t, err)
	return abs
}

func TestAddIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "watched.log")
	require.NoError(t, os.WriteFile(path, []byte("x\n"), 0o644))

	w := newWatcher(nil)
	defer w.Shutdown()

	require.NoError(t, w.Add(path, func() {}))
	require.NoError(t, w.Add(path, func() {}))

	w.mu.Lock()
	count := len(w.watches)
	w.mu.Unlock()
	require.Equal(t, 1, count)
}
