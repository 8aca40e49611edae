// Package common defines sentinel errors and the configuration error type
// shared by the settings, config, registry and storage packages. Callers
// should use errors.Is / errors.As to match these values.
package common

import "errors"

var (
	// Configuration error causes.
	ErrInvalidValue   = errors.New("invalid value")
	ErrMissingValue   = errors.New("missing value")
	ErrUnknownKey     = errors.New("unknown setting")
	ErrNotInitialized = errors.New("not initialized")

	// Builder lifecycle.
	ErrAlreadyBuilt = errors.New("builder already used")
)
