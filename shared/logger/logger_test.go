package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, output *bytes.Buffer) []map[string]any {
	t.Helper()

	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(output.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		config    Config
		checkFunc func(t *testing.T, logger *Logger, output *bytes.Buffer)
	}{
		{
			name:   "json format with debug level",
			config: Config{Level: "debug", Format: "json"},
			checkFunc: func(t *testing.T, logger *Logger, output *bytes.Buffer) {
				logger.Debug("Claiming job", slog.String("job_id", "j-1"))

				entries := decodeLines(t, output)
				require.Len(t, entries, 1)
				assert.Equal(t, "DEBUG", entries[0]["level"])
				assert.Equal(t, "Claiming job", entries[0]["msg"])
				assert.Equal(t, "j-1", entries[0]["job_id"])
				assert.Contains(t, entries[0], "time")
			},
		},
		{
			name:   "info level drops debug",
			config: Config{Level: "info", Format: "json"},
			checkFunc: func(t *testing.T, logger *Logger, output *bytes.Buffer) {
				logger.Debug("hidden")
				logger.Info("GetCredits called", slog.String("user_id", "user_1"))

				entries := decodeLines(t, output)
				require.Len(t, entries, 1)
				assert.Equal(t, "INFO", entries[0]["level"])
				assert.Equal(t, "user_1", entries[0]["user_id"])
			},
		},
		{
			name:   "error level drops warn",
			config: Config{Level: "error", Format: "json"},
			checkFunc: func(t *testing.T, logger *Logger, output *bytes.Buffer) {
				logger.Warn("hidden")
				logger.Error("Failed to deduct credits", slog.Int("amount", 2))

				entries := decodeLines(t, output)
				require.Len(t, entries, 1)
				assert.Equal(t, "ERROR", entries[0]["level"])
				assert.Equal(t, float64(2), entries[0]["amount"])
			},
		},
		{
			name:   "console format",
			config: Config{Level: "info", Format: "console", NoColor: true},
			checkFunc: func(t *testing.T, logger *Logger, output *bytes.Buffer) {
				logger.Info("station live")

				// tint abbreviates levels
				assert.Contains(t, output.String(), "INF")
				assert.Contains(t, output.String(), "station live")
			},
		},
		{
			name:   "source location",
			config: Config{Level: "info", Format: "json", EnableSource: true},
			checkFunc: func(t *testing.T, logger *Logger, output *bytes.Buffer) {
				logger.Info("with source")

				entries := decodeLines(t, output)
				require.Len(t, entries, 1)
				source, ok := entries[0]["source"].(map[string]any)
				require.True(t, ok)
				assert.Contains(t, source, "file")
				assert.Contains(t, source, "line")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := &bytes.Buffer{}
			cfg := tt.config
			cfg.writer = output

			logger, err := New(&cfg)
			require.NoError(t, err)
			require.NotNil(t, logger)

			tt.checkFunc(t, logger, output)
		})
	}
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api.log")

	logger, err := New(&Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)

	logger.Info("written to file", slog.String("service", "api"))
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}

func TestNew_BadFilePath(t *testing.T) {
	_, err := New(&Config{Output: filepath.Join(t.TempDir(), "missing", "dir", "x.log")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open log file")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLevel(tt.level))
		})
	}
}

func TestLogger_Derived(t *testing.T) {
	output := &bytes.Buffer{}
	logger, err := New(&Config{Level: "info", Format: "json", writer: output})
	require.NoError(t, err)

	logger.WithGroup("job").Info("grouped", slog.String("type", "music"))
	logger.WithAttrs(slog.String("request_id", "r-1")).Info("attrs")
	logger.With("service", "worker").Info("kv")

	entries := decodeLines(t, output)
	require.Len(t, entries, 3)

	group, ok := entries[0]["job"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "music", group["type"])
	assert.Equal(t, "r-1", entries[1]["request_id"])
	assert.Equal(t, "worker", entries[2]["service"])
}

func TestLogger_Service(t *testing.T) {
	output := &bytes.Buffer{}
	logger, err := New(&Config{Level: "info", Format: "json", Service: "radio-worker-service", writer: output})
	require.NoError(t, err)

	logger.Info("started")

	entries := decodeLines(t, output)
	require.Len(t, entries, 1)
	assert.Equal(t, "radio-worker-service", entries[0]["service"])
}

func TestNewNop(t *testing.T) {
	l := NewNop()
	require.NotNil(t, l)
	l.Error("discarded")
}
