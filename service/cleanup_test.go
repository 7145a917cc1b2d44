package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeAged(t *testing.T, dir, name string, age time.Duration) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte("stale"), 0o644))
	mtime := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(p, mtime, mtime))
	return p
}

func TestSweepRemovesOnlyStaleFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	stale := writeAged(t, dir, "1699990000_aaaa.mp4", 25*time.Hour)
	fresh := writeAged(t, dir, "1700000000_bbbb.mp4", time.Hour)

	removed, err := NewCleaner(dir, 24*time.Hour).Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	_, err = os.Stat(stale)
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh)
	require.NoError(t, err)
}

func TestSweepSkipsDirectories(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.Mkdir(sub, 0o755))
	mtime := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(sub, mtime, mtime))

	removed, err := NewCleaner(dir, 24*time.Hour).Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, removed)

	_, err = os.Stat(sub)
	require.NoError(t, err)
}

func TestSweepMissingDirIsNoop(t *testing.T) {
	removed, err := NewCleaner(filepath.Join(t.TempDir(), "absent"), 24*time.Hour).Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, removed)
}

func TestSweepEmptyDir(t *testing.T) {
	removed, err := NewCleaner(t.TempDir(), 24*time.Hour).Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, removed)
}
