package assets

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestWatchFileReportsWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.png")
	require.NoError(t, os.WriteFile(path, []byte("one"), 0o644))

	fw, err := WatchFile(path, 20*time.Millisecond, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer fw.Close()

	// a sibling changing is not our file
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.png"), []byte("x"), 0o644))
	select {
	case <-fw.Changes():
		t.Fatal("notified for another file")
	case <-time.After(200 * time.Millisecond):
	}

	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte("two"), 0o644))
	}
	select {
	case <-fw.Changes():
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification")
	}
}

func TestWatchFileCloseTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.png")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	fw, err := WatchFile(path, time.Millisecond, nil)
	require.NoError(t, err)
	abs, _ := filepath.Abs(path)
	assert.Equal(t, abs, fw.Path())
	assert.NoError(t, fw.Close())
	assert.NoError(t, fw.Close())
}

func TestWatchFileMissingDirectory(t *testing.T) {
	_, err := WatchFile(filepath.Join(t.TempDir(), "nope", "a.png"), time.Millisecond, nil)
	assert.Error(t, err)
}
