package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, warnings, err := LoadConfig()
	require.NoError(t, err)
	require.Empty(t, warnings)

	require.Equal(t, ModeSynthetic, cfg.Mode)
	require.Equal(t, 10*time.Second, cfg.ReadInterval)
	require.Equal(t, 5*time.Minute, cfg.LogInterval)
	require.Equal(t, DefaultHistoryQuery, cfg.HistoryDefaults())
	require.Equal(t, 64, cfg.SinkQueue)
}

func TestLoadConfigYAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.yaml")
	yaml := `
mode: hardware
store: memory
memory_capacity: 50
read_interval: 30s
log_interval: 1m
base_temp: 19.5
history_hours_back: 24
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("READ_INTERVAL", "15s")
	t.Setenv("HISTORY_RAW", "true")

	cfg, warnings, err := LoadConfig()
	require.NoError(t, err)
	require.Empty(t, warnings)

	require.Equal(t, ModeHardware, cfg.Mode)
	require.Equal(t, StoreMemory, cfg.Store)
	require.Equal(t, 50, cfg.MemoryCapacity)
	require.Equal(t, 15*time.Second, cfg.ReadInterval)
	require.Equal(t, time.Minute, cfg.LogInterval)
	require.InDelta(t, 19.5, cfg.BaseTemp, 1e-9)
	require.Equal(t, HistoryQuery{HoursBack: 24, StepMinutes: 60}, cfg.HistoryDefaults())
	require.True(t, cfg.HistoryRaw)
}

func TestLoadConfigBadValuesWarn(t *testing.T) {
	t.Setenv("READ_INTERVAL", "often")
	t.Setenv("SINK_QUEUE", "many")
	t.Setenv("LOG_MQTT", "maybe")

	cfg, warnings, err := LoadConfig()
	require.NoError(t, err)
	require.Len(t, warnings, 3)
	require.Equal(t, 10*time.Second, cfg.ReadInterval)
	require.Equal(t, 64, cfg.SinkQueue)
	require.False(t, cfg.LogMQTT)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown mode", map[string]string{"MODE": "emulated"}},
		{"unknown store", map[string]string{"STORE": "sqlite"}},
		{"timescale without url", map[string]string{"MODE": "hardware", "STORE": "timescale"}},
		{"zero interval", map[string]string{"LOG_INTERVAL": "0s"}},
		{"unknown log format", map[string]string{"LOG_FORMAT": "xml"}},
		{"zero read timeout", map[string]string{"READ_TIMEOUT": "0s"}},
		{"negative read timeout", map[string]string{"READ_TIMEOUT": "-1s"}},
		{"zero sink timeout", map[string]string{"SINK_TIMEOUT": "0s"}},
		{"hours back overflow", map[string]string{"HISTORY_HOURS_BACK": "35791395"}},
		{"unlimited samples", map[string]string{"HISTORY_MAX_SAMPLES": "0"}},
		{"samples above cap", map[string]string{"HISTORY_MAX_SAMPLES": "100001"}},
		{"defaults above limit", map[string]string{"HISTORY_STEP_MINUTES": "1", "HISTORY_MAX_SAMPLES": "100"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, _, err := LoadConfig()
			require.Error(t, err)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, _, err := LoadConfig()
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadConfigSamplerSettings(t *testing.T) {
	t.Setenv("ALERT_TEMP_MIN", "10")
	t.Setenv("ALERT_TEMP_MAX", "30")
	t.Setenv("READ_TIMEOUT", "2s")

	cfg, _, err := LoadConfig()
	require.NoError(t, err)
	sc := cfg.Sampler()
	require.Equal(t, 2*time.Second, sc.ReadTimeout)
	require.True(t, sc.alertsEnabled())
	require.InDelta(t, 30.0, sc.AlertMax, 1e-9)
}
