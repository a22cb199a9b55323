package pulselog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigPointsUnderHomeDotPulsepoint(t *testing.T) {
	cfg := DefaultConfig()
	home, _ := os.UserHomeDir()
	assert.Equal(t, filepath.Join(home, ".pulsepoint", "logs", "pulsepoint.log"), cfg.OutputPath)
	assert.Equal(t, "info", cfg.Level)
}

func TestInitializeCreatesLogDirectoryAndWritesEntries(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "nested", "pulsepoint.log")

	cfg := &Config{Level: "debug", OutputPath: logPath, MaxSize: 1, MaxBackups: 1, MaxAge: 1}
	require.NoError(t, Initialize(cfg))

	Get().Info("hello")
	require.NoError(t, Sync())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
}

func TestInitializeFallsBackToInfoOnInvalidLevel(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{Level: "not-a-level", OutputPath: filepath.Join(dir, "pulsepoint.log")}
	require.NoError(t, Initialize(cfg))

	// A debug-level entry should not reach a logger that fell back to info.
	Get().Debug("should not appear")
	Get().Info("should appear")
	require.NoError(t, Sync())

	data, err := os.ReadFile(cfg.OutputPath)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "should not appear")
	assert.Contains(t, string(data), "should appear")
}

func TestWithCorrelationIDTagsLogger(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{Level: "info", OutputPath: filepath.Join(dir, "pulsepoint.log"), EnableJSON: true}
	require.NoError(t, Initialize(cfg))

	WithCorrelationID("req-123").Info("tagged")
	require.NoError(t, Sync())

	data, err := os.ReadFile(cfg.OutputPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "req-123")
}

func TestGetInitializesWithDefaultsOnFirstUse(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	pulseLogger = nil
	sugar = nil
	assert.NotNil(t, Get())
	assert.NotNil(t, GetSugar())
}
