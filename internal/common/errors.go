package common

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeConfiguration for missing or malformed configuration
	ErrorTypeConfiguration ErrorType = "configuration"
	// ErrorTypeConnection for an unreachable tracker or rejected credentials
	ErrorTypeConnection ErrorType = "connection"
	// ErrorTypeTracker for failed search, create, update or component calls
	ErrorTypeTracker ErrorType = "tracker"
	// ErrorTypeValidation for unreadable findings input
	ErrorTypeValidation ErrorType = "validation"
)

// ReporterError represents a structured error with context
type ReporterError struct {
	Type       ErrorType              `json:"type"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	StatusCode int                    `json:"status_code,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
	Context    map[string]interface{} `json:"context,omitempty"`
	Cause      error                  `json:"-"`
}

// Error implements the error interface
func (e *ReporterError) Error() string {
	msg := fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Details != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Details)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap implements the errors.Unwrap interface
func (e *ReporterError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *ReporterError) WithContext(key string, value interface{}) *ReporterError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithCause sets the underlying cause
func (e *ReporterError) WithCause(cause error) *ReporterError {
	e.Cause = cause
	return e
}

// WithStatus records the HTTP status returned by the tracker
func (e *ReporterError) WithStatus(statusCode int) *ReporterError {
	e.StatusCode = statusCode
	return e
}

// WithDetails attaches the tracker's own explanation
func (e *ReporterError) WithDetails(details string) *ReporterError {
	e.Details = details
	return e
}

// NewError creates a new ReporterError
func NewError(errorType ErrorType, code, message string) *ReporterError {
	return &ReporterError{
		Type:      errorType,
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewConfigurationError creates a configuration error
func NewConfigurationError(code, message string) *ReporterError {
	return NewError(ErrorTypeConfiguration, code, message)
}

// NewConnectionError creates a connection error
func NewConnectionError(code, message string) *ReporterError {
	return NewError(ErrorTypeConnection, code, message)
}

// NewTrackerError creates a tracker error
func NewTrackerError(code, message string) *ReporterError {
	return NewError(ErrorTypeTracker, code, message)
}

// NewValidationError creates a validation error
func NewValidationError(code, message string) *ReporterError {
	return NewError(ErrorTypeValidation, code, message)
}

func isType(err error, errorType ErrorType) bool {
	var re *ReporterError
	return errors.As(err, &re) && re.Type == errorType
}

func IsConfigurationError(err error) bool { return isType(err, ErrorTypeConfiguration) }

func IsConnectionError(err error) bool { return isType(err, ErrorTypeConnection) }

func IsTrackerError(err error) bool { return isType(err, ErrorTypeTracker) }
