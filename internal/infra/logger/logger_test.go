package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"INFO":    zerolog.InfoLevel,
		"":        zerolog.InfoLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"chatty":  zerolog.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, zerolog.InfoLevel, false, true)
	l.Info().Msg("queue: seeded: count=3")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "queue: seeded: count=3", line["message"])
	assert.NotContains(t, line, "caller")
}

func TestNew_ConsoleNoColor(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, zerolog.InfoLevel, true, true)
	l.Warn().Msg("radio: started")

	assert.Contains(t, buf.String(), "WRN")
	assert.Contains(t, buf.String(), "radio: started")
	assert.NotContains(t, buf.String(), "\x1b[")
}

func TestInit_File(t *testing.T) {
	prev := zlog.Logger
	prevLevel := zerolog.GlobalLevel()
	t.Cleanup(func() {
		zlog.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	})

	path := filepath.Join(t.TempDir(), "voxbox.log")
	closer, err := Init(Config{Output: path, Level: "debug"})
	require.NoError(t, err)

	zlog.Debug().Msg("playback: loading")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &line))
	assert.Equal(t, "playback: loading", line["message"])
	assert.Contains(t, line["caller"], "logger/logger_test.go")
}

func TestInit_BadFile(t *testing.T) {
	_, err := Init(Config{Output: filepath.Join(t.TempDir(), "missing", "x.log")})
	assert.Error(t, err)
}

func TestShortCaller(t *testing.T) {
	assert.Equal(t, filepath.Join("queue", "controller.go")+":42",
		shortCaller(0, filepath.Join("/src", "internal", "app", "queue", "controller.go"), 42))
	assert.Equal(t, "main.go:7", shortCaller(0, "main.go", 7))
}
