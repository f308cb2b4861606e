package model

import "errors"

var ErrNoTokens = errors.New("No device tokens available")

// ValidationError is returned for bad caller input. Handlers map it to 400.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError builds a ValidationError with the given message.
func NewValidationError(msg string) *ValidationError {
	return &ValidationError{Message: msg}
}

// ConfigurationError means the service cannot talk to the push provider
// until an operator fixes its setup (missing key, missing project id, ...).
type ConfigurationError struct {
	Message string
	Err     error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// DispatchError is a transport failure while reaching the push provider.
// It aborts the whole dispatch call.
type DispatchError struct {
	Message string
	Err     error
}

func (e *DispatchError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}
