package common

import (
	"fmt"
	"strings"
)

// ConfigurationError reports a resolution or validation failure for a single
// setting. It is never retried: it signals a deployment or programming
// mistake and should be returned to the caller unchanged.
type ConfigurationError struct {
	// Key is the setting key, e.g. "storage_bucket".
	Key string
	// Value is the observed value. Secrets are masked before they get here.
	Value string
	// Present reports whether any source supplied the key at all.
	Present bool
	// Origin names the source the value came from ("explicit", "environment
	// variable JWT_EXPIRE_MINUTES", ...). Empty when unknown.
	Origin string
	// Suggestion is one corrective action, e.g. "set STORAGE_BUCKET ...".
	Suggestion string
	// Err is the cause: ErrInvalidValue, ErrMissingValue, ErrUnknownKey or
	// ErrNotInitialized, possibly wrapped with detail.
	Err error
}

func (e *ConfigurationError) Error() string {
	var b strings.Builder

	b.WriteString("configuration: ")
	if e.Key != "" {
		b.WriteString(e.Key)
		b.WriteString(": ")
	}
	if e.Err != nil {
		b.WriteString(e.Err.Error())
	} else {
		b.WriteString(ErrInvalidValue.Error())
	}

	if e.Present {
		fmt.Fprintf(&b, " (got %q", e.Value)
		if e.Origin != "" {
			fmt.Fprintf(&b, " from %s", e.Origin)
		}
		b.WriteString(")")
	} else if e.Key != "" {
		b.WriteString(" (not set)")
	}

	if e.Suggestion != "" {
		b.WriteString("; ")
		b.WriteString(e.Suggestion)
	}

	return b.String()
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}
