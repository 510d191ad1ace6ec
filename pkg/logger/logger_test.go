package logger

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelBasedMuxHandler_WritesBothSinks(t *testing.T) {
	var stdout, file bytes.Buffer
	log := slog.New(NewLevelBasedMuxHandler(&stdout, &file, slog.LevelInfo))

	log.Info("valid records", slog.Int("count", 3))
	log.Debug("hidden")

	assert.Contains(t, stdout.String(), `"msg":"valid records"`)
	assert.Contains(t, file.String(), `"count":3`)
	assert.Contains(t, file.String(), `"source"`)
	assert.NotContains(t, stdout.String(), "hidden")
	assert.NotContains(t, file.String(), "hidden")
}

func TestLevelBasedMuxHandler_WithAttrsPropagates(t *testing.T) {
	var stdout, file bytes.Buffer
	log := slog.New(NewLevelBasedMuxHandler(&stdout, &file, slog.LevelInfo)).With(slog.String("run_id", "r-1"))

	log.Warn("chunk failed")

	assert.Contains(t, stdout.String(), `"run_id":"r-1"`)
	assert.Contains(t, file.String(), `"run_id":"r-1"`)
}

func TestNewRunLogger_FansOutToParentAndFile(t *testing.T) {
	var parentOut bytes.Buffer
	parent := slog.New(slog.NewJSONHandler(&parentOut, nil))
	path := filepath.Join(t.TempDir(), "LOG", "run.20250709230000.log")

	runLog, err := NewRunLogger(parent, path)
	require.NoError(t, err)

	runLog.Logger.Info("decoded rows", slog.Int("count", 5))
	require.NoError(t, runLog.Close())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "decoded rows")
	assert.Contains(t, string(content), "count=5")
	assert.Contains(t, parentOut.String(), "decoded rows")
}

func TestNewLoggerWithFile_Appends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")

	first, err := NewLoggerWithFile(path, slog.LevelInfo)
	require.NoError(t, err)
	first.Logger.Info("first")
	require.NoError(t, first.Close())

	second, err := NewLoggerWithFile(path, slog.LevelInfo)
	require.NoError(t, err)
	second.Logger.Info("second")
	require.NoError(t, second.Close())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "first")
	assert.Contains(t, string(content), "second")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}
