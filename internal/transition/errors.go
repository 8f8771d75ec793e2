package transition

import (
	"errors"
	"fmt"
)

// ConfigError is a hard failure caused by missing or broken collaborators.
// It is returned at first use, never from deep inside a ramp.
type ConfigError struct {
	// Code identifies the error category.
	Code ConfigErrorCode

	// Message is a human-readable description.
	Message string

	// Channel and ResourceID identify the failing request.
	Channel    string
	ResourceID string

	// Err is the underlying cause, if any.
	Err error
}

// ConfigErrorCode categorizes configuration errors.
type ConfigErrorCode string

const (
	// ErrCodeNoResolver indicates the coordinator has no resolver.
	ErrCodeNoResolver ConfigErrorCode = "NO_RESOLVER"

	// ErrCodeUnknownResource indicates the resolver failed for an ID.
	ErrCodeUnknownResource ConfigErrorCode = "UNKNOWN_RESOURCE"

	// ErrCodeNilResource indicates the resolver returned a nil resource.
	ErrCodeNilResource ConfigErrorCode = "NIL_RESOURCE"
)

// Error implements the error interface.
func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.ResourceID != "" {
		msg += fmt.Sprintf(" (channel=%s, resource=%s)", e.Channel, e.ResourceID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// IsConfigError reports whether err is (or wraps) a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
