package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewWritesBaseFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.json")
	log, err := New(Config{
		Environment: "test",
		Level:       "debug",
		Encoding:    "json",
		ServiceName: "liquid",
		OutputPaths: []string{path},
	})
	require.NoError(t, err)
	log.Debug("hello")
	_ = log.Sync()

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(b, &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "liquid", entry["service"])
	assert.Equal(t, "test", entry["environment"])
}

func TestLevelFilters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.json")
	log, err := New(Config{Level: "warn", Encoding: "json", OutputPaths: []string{path}})
	require.NoError(t, err)
	log.Info("dropped")
	_ = log.Sync()

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, b)
}

func TestConsoleFileOutputHasNoColor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.txt")
	log, err := New(Config{Encoding: "console", OutputPaths: []string{path}})
	require.NoError(t, err)
	log.Warn("plain")
	_ = log.Sync()

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "WARN")
	assert.NotContains(t, string(b), "\x1b[")
}

func TestConsoleOnly(t *testing.T) {
	assert.True(t, consoleOnly([]string{"stderr"}))
	assert.True(t, consoleOnly([]string{"stdout", "stderr"}))
	assert.False(t, consoleOnly([]string{"stderr", "/var/log/liquid.log"}))
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, zapcore.InfoLevel, l)

	l, err = ParseLevel("error")
	require.NoError(t, err)
	assert.Equal(t, zapcore.ErrorLevel, l)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)
}
