package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/invopop/jsonschema"

	"github.com/coral-mesh/coral-probe/internal/rtt"
)

// SchemaVersion is the configuration schema version.
const SchemaVersion = "1"

// FileName is the conventional name of the configuration file.
const FileName = "coral-probe.yaml"

// Config represents the coral-probe.yaml config file.
type Config struct {
	Version string        `yaml:"version" json:"version" jsonschema:"required"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
	Session SessionConfig `yaml:"session" json:"session"`
	RTT     rtt.Config    `yaml:"rtt" json:"rtt"`
}

// LoggingConfig contains logger settings.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level" env:"CORAL_PROBE_LOG_LEVEL" jsonschema:"enum=trace,enum=debug,enum=info,enum=warn,enum=error"`
	Pretty bool   `yaml:"pretty" json:"pretty" env:"CORAL_PROBE_LOG_PRETTY"`
}

// SessionConfig contains per-core session settings.
type SessionConfig struct {
	// TimestampOffset is the UTC offset used for RTT timestamps, as +HH:MM,
	// -HH:MM or Z. Empty means the local time zone.
	TimestampOffset string         `yaml:"timestamp_offset,omitempty" json:"timestamp_offset,omitempty" env:"CORAL_PROBE_TIMESTAMP_OFFSET" jsonschema:"pattern=^(Z|[+-][0-9]{2}:[0-9]{2})$"`
	RTTRetry        RTTRetryConfig `yaml:"rtt_retry" json:"rtt_retry"`
}

// RTTRetryConfig is the backoff between opportunistic RTT attach attempts.
type RTTRetryConfig struct {
	InitialBackoff time.Duration `yaml:"initial_backoff" json:"initial_backoff" env:"CORAL_PROBE_RTT_RETRY_INITIAL_BACKOFF" jsonschema:"type=string"`
	MaxBackoff     time.Duration `yaml:"max_backoff" json:"max_backoff" env:"CORAL_PROBE_RTT_RETRY_MAX_BACKOFF" jsonschema:"type=string"`
}

// JSONSchema returns the JSON schema of the configuration file, indented for
// display.
func JSONSchema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	schema := reflector.Reflect(&Config{})
	schema.Title = "coral-probe configuration"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return data, nil
}
