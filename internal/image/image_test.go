package image

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStore_LoadAndCurrent(t *testing.T) {
	s := NewStore()
	_, err := s.Current()
	assert.ErrorIs(t, err, ErrNoImage)

	path := filepath.Join(t.TempDir(), "token.bin")
	require.NoError(t, os.WriteFile(path, []byte{1, 2, 3}, 0o644))

	img, err := s.Load(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, img.Data)
	assert.Equal(t, "039058c6f2c0cb492c533b0a4d14ef77cc0f78abccced5287d84a1a2011cfb81", img.Sum)
	assert.Equal(t, "039058c6f2c0", img.Short())

	cur, err := s.Current()
	require.NoError(t, err)
	assert.Same(t, img, cur)
}

func TestStore_FailedLoadKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.bin")
	empty := filepath.Join(dir, "empty.bin")
	require.NoError(t, os.WriteFile(good, []byte{0xAA}, 0o644))
	require.NoError(t, os.WriteFile(empty, nil, 0o644))

	s := NewStore()
	first, err := s.Load(good)
	require.NoError(t, err)

	_, err = s.Load(empty)
	assert.Error(t, err)
	_, err = s.Load(filepath.Join(dir, "missing.bin"))
	assert.Error(t, err)
	_, err = s.Load(dir)
	assert.Error(t, err)

	cur, err := s.Current()
	require.NoError(t, err)
	assert.Same(t, first, cur)
}

func TestWatcher_SyncCopiesToLocal(t *testing.T) {
	src := filepath.Join(t.TempDir(), "share", "token.bin")
	dst := filepath.Join(t.TempDir(), "local", "token.bin")
	require.NoError(t, os.MkdirAll(filepath.Dir(src), 0o755))
	require.NoError(t, os.WriteFile(src, []byte("v1"), 0o644))

	s := NewStore()
	var reloaded *Image
	w, err := NewWatcher(src, dst, s, WithWatcherLogger(quietLog()), WithReloadHook(func(img *Image) { reloaded = img }))
	require.NoError(t, err)

	img, err := w.Sync()
	require.NoError(t, err)
	assert.Equal(t, dst, img.Path)
	assert.Same(t, img, reloaded)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(got))
}

func TestWatcher_RunReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "token.bin")
	dst := filepath.Join(t.TempDir(), "token.bin")
	require.NoError(t, os.WriteFile(src, []byte("v1"), 0o644))

	s := NewStore()
	reloads := make(chan *Image, 8)
	w, err := NewWatcher(src, dst, s,
		WithSettle(20*time.Millisecond),
		WithWatcherLogger(quietLog()),
		WithReloadHook(func(img *Image) { reloads <- img }),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	select {
	case img := <-reloads:
		assert.Equal(t, "v1", string(img.Data))
	case <-time.After(2 * time.Second):
		t.Fatal("no initial sync")
	}

	require.NoError(t, os.WriteFile(src, []byte("v2"), 0o644))

	require.Eventually(t, func() bool {
		img, err := s.Current()
		return err == nil && string(img.Data) == "v2"
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestNewWatcher_Validates(t *testing.T) {
	_, err := NewWatcher("", "x", NewStore())
	assert.Error(t, err)
	_, err = NewWatcher("x", "", nil)
	assert.Error(t, err)

	w, err := NewWatcher("/a/b.bin", "", NewStore())
	require.NoError(t, err)
	assert.Equal(t, w.source, w.local)
}
