package library

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmunix/reelq/internal/item"
)

func writeFile(t *testing.T, p string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
}

func filled(file string) item.MediaItem {
	return item.MediaItem{ID: 1, Type: item.TypeMovie, Title: "Heat", FilledByFile: &file}
}

func TestWatcher_RescanAndConfirm(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Heat (1995)", "Heat.1995.1080p.BluRay.mkv"))
	writeFile(t, filepath.Join(root, "Heat (1995)", "notes.txt"))

	w := NewWatcher([]string{root}, nil)
	n, err := w.Rescan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	conf, err := w.ConfirmCollected(context.Background(), filled("heat.1995.1080p.bluray.mkv"))
	require.NoError(t, err)
	assert.True(t, conf.Collected, "lookup is case-insensitive")
	assert.Equal(t, filepath.Join(root, "Heat (1995)", "Heat.1995.1080p.BluRay.mkv"), conf.Location)

	conf, err = w.ConfirmCollected(context.Background(), filled("Other.mkv"))
	require.NoError(t, err)
	assert.False(t, conf.Collected)

	conf, err = w.ConfirmCollected(context.Background(), item.MediaItem{})
	require.NoError(t, err)
	assert.False(t, conf.Collected, "no file recorded")
}

func TestWatcher_ProbesRootsBetweenScans(t *testing.T) {
	root := t.TempDir()
	w := NewWatcher([]string{root}, nil)

	writeFile(t, filepath.Join(root, "Late.Arrival.mkv"))
	conf, err := w.ConfirmCollected(context.Background(), filled("Late.Arrival.mkv"))
	require.NoError(t, err)
	assert.True(t, conf.Collected)
	assert.Equal(t, 1, w.Len())
}

func TestWatcher_StaleIndexEntry(t *testing.T) {
	root := t.TempDir()
	p := filepath.Join(root, "sub", "Gone.mkv")
	writeFile(t, p)
	w := NewWatcher([]string{root}, nil)
	_, err := w.Rescan(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.Remove(p))
	conf, err := w.ConfirmCollected(context.Background(), filled("Gone.mkv"))
	require.NoError(t, err)
	assert.False(t, conf.Collected)
	assert.Equal(t, 0, w.Len())
}

func TestWatcher_SymlinkTarget(t *testing.T) {
	mount := t.TempDir()
	root := t.TempDir()
	target := filepath.Join(mount, "torrent", "Heat.1995.mkv")
	writeFile(t, target)
	link := filepath.Join(root, "Heat.1995.mkv")
	require.NoError(t, os.Symlink(target, link))

	w := NewWatcher([]string{root}, nil)
	_, err := w.Rescan(context.Background())
	require.NoError(t, err)

	conf, err := w.ConfirmCollected(context.Background(), filled("Heat.1995.mkv"))
	require.NoError(t, err)
	require.True(t, conf.Collected)
	assert.Equal(t, link, conf.Location)
	wantTarget, err := filepath.EvalSymlinks(target)
	require.NoError(t, err)
	assert.Equal(t, wantTarget, conf.OriginalPath)
}

func TestWatcher_Notify(t *testing.T) {
	root := t.TempDir()
	w := NewWatcher([]string{root}, nil)

	p := filepath.Join(root, "show", "The.Wire.S01E01.mkv")
	writeFile(t, p)
	require.NoError(t, w.Notify(p))
	assert.Equal(t, 1, w.Len())

	writeFile(t, filepath.Join(root, "show", "The.Wire.S01E02.mkv"))
	require.NoError(t, w.Notify(filepath.Join(root, "show")), "directories are indexed recursively")
	assert.Equal(t, 2, w.Len())

	assert.ErrorIs(t, w.Notify("/etc/passwd"), ErrOutsideLibrary)
	assert.Error(t, w.Notify(filepath.Join(root, "missing.mkv")))
}

func TestWatcher_RemoveFile(t *testing.T) {
	root := t.TempDir()
	p := filepath.Join(root, "Old.720p.mkv")
	writeFile(t, p)
	w := NewWatcher([]string{root}, nil)
	_, err := w.Rescan(context.Background())
	require.NoError(t, err)

	require.NoError(t, w.RemoveFile(context.Background(), "Heat", p, ""))
	_, err = os.Stat(p)
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, 0, w.Len())

	require.NoError(t, w.RemoveFile(context.Background(), "Heat", p, ""), "already removed")
	require.NoError(t, w.RemoveFile(context.Background(), "Heat", "", ""))
	assert.ErrorIs(t, w.RemoveFile(context.Background(), "Heat", "/tmp/../etc/hosts", ""), ErrOutsideLibrary)
}

func TestWatcher_RunPicksUpNewFiles(t *testing.T) {
	root := t.TempDir()
	w := NewWatcher([]string{root}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Wait for the initial scan to register the watches.
	time.Sleep(100 * time.Millisecond)
	dir := filepath.Join(root, "new")
	writeFile(t, filepath.Join(dir, "Arrived.mkv"))

	assert.Eventually(t, func() bool { return w.Len() == 1 }, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestWithin(t *testing.T) {
	assert.True(t, within("/lib", "/lib/a/b.mkv"))
	assert.False(t, within("/lib", "/library/b.mkv"))
	assert.False(t, within("/lib", "/other"))
}
