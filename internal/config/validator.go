package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/coral-mesh/coral-probe/internal/logging"
	"github.com/coral-mesh/coral-probe/internal/rtt"
)

// ValidationError represents a single validation error.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// MultiValidationError represents multiple validation errors.
type MultiValidationError struct {
	Errors []ValidationError
}

// Error implements the error interface.
func (e *MultiValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}

	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("validation failed with %d errors:\n", len(e.Errors)))
	for i, err := range e.Errors {
		builder.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return builder.String()
}

// Validate validates the configuration. It returns a *MultiValidationError
// listing every problem found, or nil.
func (c *Config) Validate() error {
	var errors []ValidationError

	if c.Version == "" {
		errors = append(errors, ValidationError{
			Field:   "version",
			Message: "version is required",
		})
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("%v (must be one of %s)", err, strings.Join(logging.Levels, ", ")),
		})
	}

	if _, err := ParseTimestampOffset(c.Session.TimestampOffset); err != nil {
		errors = append(errors, ValidationError{
			Field:   "session.timestamp_offset",
			Message: err.Error(),
		})
	}

	retryCfg := c.Session.RTTRetry
	if retryCfg.InitialBackoff <= 0 {
		errors = append(errors, ValidationError{
			Field:   "session.rtt_retry.initial_backoff",
			Message: "initial backoff must be positive",
		})
	}
	if retryCfg.MaxBackoff <= 0 {
		errors = append(errors, ValidationError{
			Field:   "session.rtt_retry.max_backoff",
			Message: "max backoff must be positive",
		})
	} else if retryCfg.MaxBackoff < retryCfg.InitialBackoff {
		errors = append(errors, ValidationError{
			Field:   "session.rtt_retry.max_backoff",
			Message: "max backoff must not be less than initial backoff",
		})
	}

	errors = append(errors, validateChannels(c.RTT.Channels)...)

	if len(errors) > 0 {
		return &MultiValidationError{Errors: errors}
	}
	return nil
}

func validateChannels(channels []rtt.ChannelConfig) []ValidationError {
	var errors []ValidationError

	seen := make(map[int]bool, len(channels))
	for i, ch := range channels {
		field := fmt.Sprintf("rtt.channels[%d]", i)

		if ch.ChannelNumber < 0 {
			errors = append(errors, ValidationError{
				Field:   field + ".channel_number",
				Message: "channel number must not be negative",
			})
		} else if seen[ch.ChannelNumber] {
			errors = append(errors, ValidationError{
				Field:   field + ".channel_number",
				Message: fmt.Sprintf("channel %d is configured more than once", ch.ChannelNumber),
			})
		}
		seen[ch.ChannelNumber] = true

		if ch.DataFormat != "" && !ch.DataFormat.Valid() {
			errors = append(errors, ValidationError{
				Field:   field + ".data_format",
				Message: fmt.Sprintf("unknown data format %q (must be string, binary_le or defmt)", ch.DataFormat),
			})
		}

		if ch.Mode != "" {
			if _, err := rtt.ParseChannelMode(ch.Mode); err != nil {
				errors = append(errors, ValidationError{
					Field:   field + ".mode",
					Message: err.Error(),
				})
			}
		}
	}

	return errors
}

// ParseTimestampOffset parses a UTC offset of the form +HH:MM or -HH:MM, or Z
// for UTC. An empty offset selects the local time zone.
func ParseTimestampOffset(offset string) (*time.Location, error) {
	switch offset {
	case "":
		return time.Local, nil
	case "Z", "z":
		return time.UTC, nil
	}

	if len(offset) != 6 || (offset[0] != '+' && offset[0] != '-') || offset[3] != ':' {
		return nil, fmt.Errorf("invalid timestamp offset %q (expected +HH:MM, -HH:MM or Z)", offset)
	}

	hours, err := strconv.ParseUint(offset[1:3], 10, 8)
	if err != nil || hours > 23 {
		return nil, fmt.Errorf("invalid hours in timestamp offset %q", offset)
	}
	minutes, err := strconv.ParseUint(offset[4:6], 10, 8)
	if err != nil || minutes > 59 {
		return nil, fmt.Errorf("invalid minutes in timestamp offset %q", offset)
	}

	seconds := int(hours*3600 + minutes*60)
	if offset[0] == '-' {
		seconds = -seconds
	}
	if seconds == 0 {
		return time.UTC, nil
	}
	return time.FixedZone(offset, seconds), nil
}
