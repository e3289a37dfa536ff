package nativelog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTodayFilename(t *testing.T) {
	now := time.Date(2026, 3, 15, 4, 30, 0, 0, time.UTC)
	assert.Equal(t, "stdout_3-15-26.log", TodayFilename(now))
}

func TestWriterAppendsAndPublishes(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvLogDir, dir)

	w, err := NewWriter()
	require.NoError(t, err)

	id, frames := Subscribe(4)
	defer Unsubscribe(id)

	_, err = w.Write([]byte("hello line\n"))
	require.NoError(t, err)
	_, err = w.Write([]byte("second line\n"))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, TodayFilename(time.Now())))
	require.NoError(t, err)
	assert.Equal(t, "hello line\nsecond line\n", string(data))

	select {
	case frame := <-frames:
		assert.Equal(t, "hello line\n", frame)
	case <-time.After(time.Second):
		t.Fatal("no frame received")
	}
}

func TestSnapshotFilesSinceStartup(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvLogDir, dir)

	now := time.Now()
	today := filepath.Join(dir, TodayFilename(now))
	require.NoError(t, os.WriteFile(today, []byte("x"), 0o644))

	// A file from before this process started stays out of the snapshot.
	stale := filepath.Join(dir, "stdout_1-1-20.log")
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0o644))

	paths, err := SnapshotFilesSinceStartup(now)
	require.NoError(t, err)
	assert.Equal(t, []string{today}, paths)
}
