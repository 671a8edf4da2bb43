package kernel

import (
	"errors"
	"fmt"
)

// ErrConfig is wrapped by every static configuration failure.
var ErrConfig = errors.New("invalid kernel configuration")

// ErrUnknownVariant is returned by Lookup.
var ErrUnknownVariant = errors.New("unknown kernel variant")

// ConfigError reports which configuration field was rejected.
type ConfigError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("kernel config %s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("kernel config %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrConfig, e.Err}
	}
	return []error{ErrConfig}
}

func configErr(field, format string, args ...any) error {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
