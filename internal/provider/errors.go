package provider

import (
	"fmt"
	"strings"
)

// ConfigurationError reports a missing credential or an unknown provider.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string { return e.Msg }

// ValidationError reports a currency the adapter does not support.
type ValidationError struct {
	Currency  string
	Supported []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("CURRENCY=%s is not supported. Options are: [%s].", e.Currency, strings.Join(e.Supported, ", "))
}

// MalformedResponseError wraps a body that could not be decoded.
type MalformedResponseError struct {
	Body []byte
	Err  error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("JSON decode error: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// MissingFieldError reports an item that lacks a required field.
type MissingFieldError struct {
	Item  string
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: missing %q", e.Item, e.Field)
}
