package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger("json", "warn", &buf)

	logger.Info("potlačeno")
	logger.Warn("Chyba čtení čidla", "error", "timeout")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "WARN", line["level"])
	require.Equal(t, "timeout", line["error"])
}

func TestNewLoggerText(t *testing.T) {
	var buf bytes.Buffer
	newLogger("text", "debug", &buf).Debug("Čidlo přečteno", "temp", 21.5)

	require.Contains(t, buf.String(), "Čidlo přečteno")
	// tint obarvuje klíče, hodnota tedy nemusí následovat hned za "="
	require.Contains(t, buf.String(), "temp=")
	require.Contains(t, buf.String(), "21.5")
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, parseLevel("warning"))
	require.Equal(t, slog.LevelError, parseLevel("error"))
	require.Equal(t, slog.LevelInfo, parseLevel("whatever"))
}
