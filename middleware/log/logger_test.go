package logger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleychat/parley/config"
)

func TestNewLogger(t *testing.T) {
	t.Run("creates logger with JSON format and stdout output", func(t *testing.T) {
		cfg := &config.LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		}

		log, err := NewLogger(cfg)
		require.NoError(t, err)
		require.NotNil(t, log)

		log.Info("test message")
	})

	t.Run("creates logger with text format", func(t *testing.T) {
		cfg := &config.LoggingConfig{
			Level:  "debug",
			Format: "text",
			Output: "stdout",
		}

		log, err := NewLogger(cfg)
		require.NoError(t, err)
		require.NotNil(t, log)

		log.Debug("test debug message")
	})

	t.Run("creates logger with file output", func(t *testing.T) {
		tmpDir := t.TempDir()
		logFile := filepath.Join(tmpDir, "test.log")

		cfg := &config.LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "file",
			FilePath: logFile,
		}

		log, err := NewLogger(cfg)
		require.NoError(t, err)
		require.NotNil(t, log)

		log.Info("test file message")

		// Close logger to release file handle
		err = log.Close()
		require.NoError(t, err)

		content, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(content), "test file message")
	})

	t.Run("unknown level falls back to info", func(t *testing.T) {
		cfg := &config.LoggingConfig{
			Level:  "loud",
			Format: "json",
			Output: "stdout",
		}

		log, err := NewLogger(cfg)
		require.NoError(t, err)
		require.NotNil(t, log)
	})
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]string{
		"debug":   "debug",
		"info":    "info",
		"warn":    "warn",
		"error":   "error",
		"fatal":   "fatal",
		"unknown": "info",
	}
	for input, want := range cases {
		assert.Equal(t, want, parseLogLevel(input).String(), "level %q", input)
	}
}

func TestWithTraceIDLogger(t *testing.T) {
	log, err := NewDevelopmentLogger()
	require.NoError(t, err)

	traced := log.WithTraceID("trace-123")
	require.NotNil(t, traced)
	assert.NotSame(t, log, traced)

	// Original logger is unchanged, traced one carries the field
	traced.Info("traced message")
	log.Info("plain message")
}

func TestWithContextLogger(t *testing.T) {
	log, err := NewDevelopmentLogger()
	require.NoError(t, err)

	t.Run("context with trace ID", func(t *testing.T) {
		ctx := WithTraceID(context.Background(), "ctx-trace-456")
		traced := log.WithContext(ctx)
		require.NotNil(t, traced)
		traced.Info("message with trace from context")
	})

	t.Run("context without trace ID", func(t *testing.T) {
		traced := log.WithContext(context.Background())
		require.NotNil(t, traced)
		traced.Info("message without trace")
	})
}
