package server

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reloadRecorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *reloadRecorder) record(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
	return nil
}

func (r *reloadRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func startWatcher(t *testing.T, dir string, rec *reloadRecorder) {
	t.Helper()
	w, err := NewWatcher(dir, rec.record, false)
	require.NoError(t, err)
	w.Start()
	t.Cleanup(func() { w.Stop() })
}

func TestWatcherReportsWidgetSources(t *testing.T) {
	dir := t.TempDir()
	rec := &reloadRecorder{}
	startWatcher(t, dir, rec)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "counter.js"), []byte("export default class A {}"), 0644))

	assert.Eventually(t, func() bool {
		paths := rec.snapshot()
		return len(paths) == 1 && paths[0] == "counter.js"
	}, 2*time.Second, 20*time.Millisecond)
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	rec := &reloadRecorder{}
	startWatcher(t, dir, rec)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "style.css"), []byte("a{}"), 0644))

	assert.Eventually(t, func() bool {
		return len(rec.snapshot()) > 0
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, []string{"style.css"}, rec.snapshot())
}

func TestWatcherDebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	rec := &reloadRecorder{}
	startWatcher(t, dir, rec)

	path := filepath.Join(dir, "text.js")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte{byte('a' + i)}, 0644))
	}

	assert.Eventually(t, func() bool {
		return len(rec.snapshot()) > 0
	}, 2*time.Second, 20*time.Millisecond)
	time.Sleep(3 * debounceInterval)
	assert.Equal(t, []string{"text.js"}, rec.snapshot())
}

func TestWatcherFollowsNewDirectories(t *testing.T) {
	dir := t.TempDir()
	rec := &reloadRecorder{}
	startWatcher(t, dir, rec)

	sub := filepath.Join(dir, "extra")
	require.NoError(t, os.Mkdir(sub, 0755))
	// Give the watcher a moment to add the new directory
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(sub, "widget.js"), []byte("x"), 0644))

	assert.Eventually(t, func() bool {
		for _, p := range rec.snapshot() {
			if p == filepath.Join("extra", "widget.js") {
				return true
			}
		}
		return false
	}, 2*time.Second, 20*time.Millisecond)
}

func TestEnableWatchBroadcasts(t *testing.T) {
	dir := t.TempDir()
	srv, ts := newWSServer(t, nil)
	rec := &reloadRecorder{}
	require.NoError(t, srv.EnableWatch(dir, rec.record))
	t.Cleanup(func() { srv.StopWatch() })

	c := newWSTestClient(t, ts, "/")
	c.receiveHTML()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "counter.js"), []byte("export default class A {}"), 0644))

	msg := c.receiveAction("reload")
	assert.JSONEq(t, `{"filePath":"counter.js"}`, string(msg.Data))
	assert.Equal(t, []string{"counter.js"}, rec.snapshot())
}
