package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperation_String(t *testing.T) {
	assert.Equal(t, "CREATE", OpCreate.String())
	assert.Equal(t, "MODIFY", OpModify.String())
	assert.Equal(t, "DELETE", OpDelete.String())
	assert.Equal(t, "RENAME", OpRename.String())
	assert.Equal(t, "UNKNOWN", Operation(99).String())
}

func TestOptions_WithDefaults(t *testing.T) {
	opts := Options{}.WithDefaults()
	assert.Equal(t, 500*time.Millisecond, opts.DebounceWindow)
	assert.Equal(t, 5*time.Second, opts.PollInterval)
	assert.Equal(t, 256, opts.EventBufferSize)
	assert.Equal(t, []string{".pdf"}, opts.Extensions)

	custom := Options{DebounceWindow: time.Second}.WithDefaults()
	assert.Equal(t, time.Second, custom.DebounceWindow)
	assert.Equal(t, 5*time.Second, custom.PollInterval)
}

func TestOptions_MatchesExtension(t *testing.T) {
	opts := DefaultOptions()
	assert.True(t, opts.matchesExtension("report.pdf"))
	assert.True(t, opts.matchesExtension("REPORT.PDF"))
	assert.False(t, opts.matchesExtension("notes.txt"))
	assert.False(t, opts.matchesExtension("archive.pdf.zip"))
}

func TestDropWatcher_ShouldIgnore(t *testing.T) {
	w, err := NewDropWatcher(Options{})
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	assert.True(t, w.shouldIgnore("", false))
	assert.True(t, w.shouldIgnore(".", false))
	assert.True(t, w.shouldIgnore("subdir", true))
	assert.True(t, w.shouldIgnore(".hidden.pdf", false))
	assert.True(t, w.shouldIgnore("report.pdf.part", false))
	assert.True(t, w.shouldIgnore("report.pdf.crdownload", false))
	assert.True(t, w.shouldIgnore("notes.txt", false))
	assert.False(t, w.shouldIgnore("report.pdf", false))
	assert.False(t, w.shouldIgnore("nested/report.pdf", false))
}

func TestDropWatcher_EmitsCreateForDroppedPDF(t *testing.T) {
	dir := t.TempDir()

	w, err := NewDropWatcher(Options{DebounceWindow: 50 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Start(ctx, dir)
	}()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "report.pdf"), []byte("%PDF-1.4"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("not a pdf"), 0o644))

	select {
	case batch := <-w.Events():
		require.NotEmpty(t, batch)
		for _, ev := range batch {
			assert.Equal(t, "report.pdf", ev.Path)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for file event")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestDropWatcher_StartRejectsMissingDirectory(t *testing.T) {
	w, err := NewDropWatcher(Options{})
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	err = w.Start(context.Background(), filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

func TestPollingWatcher_DetectsLifecycle(t *testing.T) {
	dir := t.TempDir()
	p := NewPollingWatcher(30 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = p.Start(ctx, dir) }()

	// Wait for the baseline scan before creating the file.
	time.Sleep(60 * time.Millisecond)

	path := filepath.Join(dir, "report.pdf")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	ev := waitForEvent(t, p.Events())
	assert.Equal(t, OpCreate, ev.Operation)
	assert.Equal(t, "report.pdf", ev.Path)

	// Size change guarantees modification detection regardless of mtime
	// granularity.
	require.NoError(t, os.WriteFile(path, []byte("v2 with more bytes"), 0o644))
	ev = waitForEvent(t, p.Events())
	assert.Equal(t, OpModify, ev.Operation)

	require.NoError(t, os.Remove(path))
	ev = waitForEvent(t, p.Events())
	assert.Equal(t, OpDelete, ev.Operation)
}

func waitForEvent(t *testing.T, ch <-chan FileEvent) FileEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for polling event")
		return FileEvent{}
	}
}
