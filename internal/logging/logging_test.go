package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetOutputAndLevel(t *testing.T) {
	var structured, human bytes.Buffer
	SetOutput(&structured, &human)
	SetLevel(slog.LevelInfo)
	t.Cleanup(func() { SetOutput(os.Stdout, os.Stderr) })

	Structured().Debug("hidden")
	Structured().Info("shown", "file", "cat.jpg")
	ForService("scanner").Warn("warned")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(structured.Bytes(), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, "cat.jpg", entry["file"])
	assert.NotContains(t, structured.String(), "hidden")
	assert.Contains(t, human.String(), "service=scanner")

	SetLevel(LevelTrace)
	assert.Equal(t, LevelTrace, Level())
	HumanReadable().Log(t.Context(), LevelTrace, "traced")
	assert.Contains(t, human.String(), "level=TRACE")
}

func TestNewFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "pipeline.log")

	logger, closeFn, err := NewFileLogger(path, "pipeline", slog.LevelDebug, FileConfig{})
	require.NoError(t, err)

	logger.Info("pass started", "run_id", "abc")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"service":"pipeline"`)
	assert.Contains(t, string(data), `"run_id":"abc"`)
}

func TestEnableFileMirror(t *testing.T) {
	var structured, human bytes.Buffer
	SetOutput(&structured, &human)
	SetLevel(slog.LevelInfo)
	t.Cleanup(func() { SetOutput(os.Stdout, os.Stderr) })

	path := filepath.Join(t.TempDir(), "photofinder.log")
	closeFn, err := EnableFileMirror(path, DefaultFileConfig)
	require.NoError(t, err)

	slog.Info("mirrored")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "mirrored")
	assert.Contains(t, human.String(), "mirrored")
}
