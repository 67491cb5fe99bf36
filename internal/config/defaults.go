package config

import (
	"time"

	"github.com/coral-mesh/coral-probe/internal/retry"
	"github.com/coral-mesh/coral-probe/internal/rtt"
)

const (
	// DefaultLogLevel is the log level when none is configured.
	DefaultLogLevel = "info"

	// DefaultRTTInitialBackoff is the wait after the first failed RTT attach.
	DefaultRTTInitialBackoff = 250 * time.Millisecond

	// DefaultRTTMaxBackoff caps the wait between RTT attach attempts.
	DefaultRTTMaxBackoff = 5 * time.Second
)

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: SchemaVersion,
		Logging: LoggingConfig{
			Level: DefaultLogLevel,
		},
		Session: SessionConfig{
			RTTRetry: RTTRetryConfig{
				InitialBackoff: DefaultRTTInitialBackoff,
				MaxBackoff:     DefaultRTTMaxBackoff,
			},
		},
		RTT: rtt.Config{
			Enabled: true,
		},
	}
}

// RetryConfig returns the throttle configuration for RTT re-attach. Attempts
// are never exhausted: the session keeps trying while the client is attached.
func (c *Config) RetryConfig() retry.Config {
	return retry.Config{
		InitialBackoff: c.Session.RTTRetry.InitialBackoff,
		MaxBackoff:     c.Session.RTTRetry.MaxBackoff,
	}
}

// TimestampLocation returns the location RTT timestamps are rendered in.
func (c *Config) TimestampLocation() (*time.Location, error) {
	return ParseTimestampOffset(c.Session.TimestampOffset)
}
