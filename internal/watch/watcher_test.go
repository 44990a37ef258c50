package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWatcher(t *testing.T, dir string) *Watcher {
	t.Helper()

	config := DefaultConfig(dir)
	config.Debounce = 50 * time.Millisecond

	w, err := New(config)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	w.Start(ctx)

	return w
}

func waitForSignal(t *testing.T, w *Watcher, timeout time.Duration) bool {
	t.Helper()
	select {
	case <-w.Changes():
		return true
	case <-time.After(timeout):
		return false
	}
}

func TestBurstCoalescesIntoOneSignal(t *testing.T) {
	dir := t.TempDir()
	w := newTestWatcher(t, dir)

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "app.py"), []byte("print()"), 0o644))
		time.Sleep(5 * time.Millisecond)
	}

	assert.True(t, waitForSignal(t, w, 2*time.Second), "expected one signal for the burst")

	// The whole burst produced exactly one signal.
	select {
	case <-w.Changes():
		t.Fatal("burst produced a second signal")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestIgnoredDirectoriesStayQuiet(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0o755))
	w := newTestWatcher(t, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".git", "index"), []byte("x"), 0o644))

	assert.False(t, waitForSignal(t, w, 300*time.Millisecond), "changes under .git must not signal")
}

func TestSeparateEditsSignalSeparately(t *testing.T) {
	dir := t.TempDir()
	w := newTestWatcher(t, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "requirements.txt"), []byte("streamlit"), 0o644))
	require.True(t, waitForSignal(t, w, 2*time.Second))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "requirements.txt"), []byte("streamlit\npandas"), 0o644))
	assert.True(t, waitForSignal(t, w, 2*time.Second))
}
