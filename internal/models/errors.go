package models

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by collaborators and the pipeline.
var (
	ErrConfiguration       = errors.New("configuration error")
	ErrProviderUnavailable = errors.New("embedding provider unavailable")
	ErrInvalidInput        = errors.New("invalid input")
	ErrIndexUnavailable    = errors.New("vector index unavailable")
	ErrDimensionMismatch   = errors.New("dimension mismatch")
	ErrStoreUnavailable    = errors.New("structured store unavailable")
	ErrNotFound            = errors.New("not found")
	ErrGraphUnavailable    = errors.New("graph store unavailable")
	ErrQuerySyntax         = errors.New("graph query syntax error")
	ErrTimeout             = errors.New("timeout")
)

// ConfigurationError reports an invalid setting that must be fixed before any
// processing starts.
type ConfigurationError struct {
	Field  string
	Reason string
}

// NewConfigurationError returns a ConfigurationError for field.
func NewConfigurationError(field, format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration error: " + e.Reason
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrConfiguration) true for any ConfigurationError.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// IsConfigurationError reports whether err is or wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrConfiguration)
}
