package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/coral-probe/internal/rtt"
)

const sampleConfig = `
version: "1"
logging:
  level: debug
session:
  timestamp_offset: "+02:00"
  rtt_retry:
    initial_backoff: 100ms
    max_backoff: 2s
rtt:
  enabled: true
  channels:
    - channel_number: 0
      name: Terminal
      data_format: string
      show_timestamps: true
    - channel_number: 1
      data_format: defmt
      mode: block_if_full
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "1", cfg.Version)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "+02:00", cfg.Session.TimestampOffset)
	assert.Equal(t, 100*time.Millisecond, cfg.Session.RTTRetry.InitialBackoff)
	assert.Equal(t, 2*time.Second, cfg.Session.RTTRetry.MaxBackoff)

	require.True(t, cfg.RTT.Enabled)
	require.Len(t, cfg.RTT.Channels, 2)
	assert.Equal(t, rtt.ChannelConfig{
		ChannelNumber:  0,
		Name:           "Terminal",
		DataFormat:     rtt.FormatString,
		ShowTimestamps: true,
	}, cfg.RTT.Channels[0])
	assert.Equal(t, rtt.FormatDefmt, cfg.RTT.Channels[1].DataFormat)
	assert.Equal(t, "block_if_full", cfg.RTT.Channels[1].Mode)

	loc, err := cfg.TimestampLocation()
	require.NoError(t, err)
	_, offset := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).In(loc).Zone()
	assert.Equal(t, 2*3600, offset)

	retryCfg := cfg.RetryConfig()
	assert.Equal(t, 100*time.Millisecond, retryCfg.InitialBackoff)
	assert.Equal(t, 2*time.Second, retryCfg.MaxBackoff)
	assert.Zero(t, retryCfg.MaxRetries)
}

func TestParse_KeepsDefaultsForOmittedFields(t *testing.T) {
	cfg, err := Parse([]byte("version: \"1\"\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{name: "malformed yaml", data: "version: [", want: "failed to parse config"},
		{name: "invalid values", data: "version: \"1\"\nlogging:\n  level: loud\n", want: "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParse_EnvOverridesFile(t *testing.T) {
	t.Setenv("CORAL_PROBE_LOG_LEVEL", "warn")

	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	t.Run("empty path yields defaults", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("missing file yields defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(dir, "missing.yaml"))
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("reads file", func(t *testing.T) {
		path := filepath.Join(dir, FileName)
		require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0600))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Len(t, cfg.RTT.Channels, 2)
	})

	t.Run("error names the file", func(t *testing.T) {
		path := filepath.Join(dir, "broken.yaml")
		require.NoError(t, os.WriteFile(path, []byte("version: ["), 0600))

		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), path)
	})
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)

	cfg := DefaultConfig()
	cfg.Session.TimestampOffset = "Z"
	cfg.RTT.Channels = []rtt.ChannelConfig{{ChannelNumber: 2, DataFormat: rtt.FormatBinaryLE}}

	require.NoError(t, Save(path, cfg))
	assert.FileExists(t, path)

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestJSONSchema(t *testing.T) {
	data, err := JSONSchema()
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(data, &schema))

	assert.Equal(t, "coral-probe configuration", schema["title"])
	assert.Equal(t, []any{"version"}, schema["required"])

	properties, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	for _, key := range []string{"version", "logging", "session", "rtt"} {
		assert.Contains(t, properties, key)
	}

	// RTT settings are inlined rather than referenced.
	rttSchema, ok := properties["rtt"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, rttSchema, "properties")
}
