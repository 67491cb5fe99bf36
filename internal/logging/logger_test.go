package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	for _, name := range Levels {
		t.Run(name, func(t *testing.T) {
			level, err := ParseLevel(name)
			require.NoError(t, err)
			assert.Equal(t, name, level.String())
		})
	}

	for _, name := range []string{"", "verbose", "INFO", "fatal"} {
		_, err := ParseLevel(name)
		assert.EqualError(t, err, `unknown log level "`+name+`"`)
	}
}

func TestNew_Level(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{level: "trace", want: zerolog.TraceLevel},
		{level: "warn", want: zerolog.WarnLevel},
		{level: "loud", want: zerolog.InfoLevel},
		{level: "", want: zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger := New(Config{Level: tt.level, Output: &bytes.Buffer{}})
			assert.Equal(t, tt.want, logger.GetLevel())
		})
	}
}

func TestNew_TraceReachesOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "trace", Output: &buf})

	logger.Trace().Int("core_index", 1).Msg("Ignoring core status before configuration is done")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "trace", entry["level"])
	assert.EqualValues(t, 1, entry["core_index"])
	assert.Contains(t, entry, "time")
}

func TestNew_PrettyWithoutColor(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "info", Pretty: true, NoColor: true, Output: &buf})

	logger.Info().Str("binary", "firmware.elf").Msg("Binary unchanged")

	out := buf.String()
	assert.Contains(t, out, "Binary unchanged")
	assert.Contains(t, out, "binary=firmware.elf")
	assert.NotContains(t, out, "\x1b[", "no ANSI color codes")
}

func TestNew_DefaultOutput(t *testing.T) {
	logger := New(Config{Level: "error"})
	assert.NotPanics(t, func() { logger.Error().Msg("written to stderr") })
}
