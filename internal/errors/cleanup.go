// Package errors provides utilities for error handling in coral-probe.
package errors

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"
)

// DeferClose properly closes an io.Closer with logging.
// Use this in defer statements to avoid suppressing close errors.
func DeferClose(logger zerolog.Logger, closer io.Closer, msg string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logger.Warn().Err(err).Msg(msg)
	}
}

// CloseInto closes closer and, if *errp is nil, stores the close error in it
// wrapped with msg. Use it in defer statements of functions with a named
// error result when a failed close invalidates the result.
func CloseInto(closer io.Closer, errp *error, msg string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil && *errp == nil {
		*errp = fmt.Errorf("%s: %w", msg, err)
	}
}
