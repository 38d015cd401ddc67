package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents the type of error.
type ErrorType string

const (
	ErrorTypeConfig   ErrorType = "CONFIG_ERROR"
	ErrorTypeParse    ErrorType = "PARSE_ERROR"
	ErrorTypeSend     ErrorType = "SEND_ERROR"
	ErrorTypeShape    ErrorType = "SHAPE_MISMATCH"
	ErrorTypeInternal ErrorType = "INTERNAL_ERROR"

	// Status server only.
	ErrorTypeNotFound         ErrorType = "NOT_FOUND"
	ErrorTypeMethodNotAllowed ErrorType = "METHOD_NOT_ALLOWED"
)

// Fatal reports whether errors of this type terminate a replay run.
// Send failures and shape mismatches are absorbed by the loop.
func (t ErrorType) Fatal() bool {
	switch t {
	case ErrorTypeSend, ErrorTypeShape:
		return false
	default:
		return true
	}
}

// AppError represents an application error with additional context.
type AppError struct {
	Type    ErrorType              `json:"type"`
	Message string                 `json:"message"`
	Code    string                 `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
	Err     error                  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails adds details to the error.
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

// WithCode adds an error code.
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// New creates a new AppError.
func New(errType ErrorType, message string) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
	}
}

// Wrap wraps an existing error.
func Wrap(err error, errType ErrorType, message string) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(format string, args ...interface{}) *AppError {
	return New(ErrorTypeConfig, fmt.Sprintf(format, args...))
}

// WrapConfigError wraps an error raised while loading configuration.
func WrapConfigError(err error, message string) *AppError {
	return Wrap(err, ErrorTypeConfig, message)
}

// NewParseError wraps a record parse failure at the given source line.
func NewParseError(err error, line int) *AppError {
	return Wrap(err, ErrorTypeParse, "record parse failed").
		WithDetails(map[string]interface{}{"line": line})
}

// NewSendError wraps a datagram write failure.
func NewSendError(err error, destination string) *AppError {
	return Wrap(err, ErrorTypeSend, "datagram send failed").
		WithDetails(map[string]interface{}{"destination": destination})
}

// NewShapeError describes a record whose field count does not match the
// configured packet length.
func NewShapeError(got, want int) *AppError {
	return New(ErrorTypeShape, fmt.Sprintf("record has %d fields, packet length is %d", got, want)).
		WithDetails(map[string]interface{}{"fields": got, "length": want})
}

// WrapInternalError wraps an unexpected error.
func WrapInternalError(err error, message string) *AppError {
	return Wrap(err, ErrorTypeInternal, message)
}

// IsAppError checks if an error is, or wraps, an AppError.
func IsAppError(err error) bool {
	_, ok := GetAppError(err)
	return ok
}

// GetAppError extracts the first AppError in err's chain.
func GetAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsType reports whether err carries an AppError of the given type.
func IsType(err error, errType ErrorType) bool {
	appErr, ok := GetAppError(err)
	return ok && appErr.Type == errType
}

// IsFatal reports whether err must stop a replay run. Errors that are not
// AppErrors are treated as fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	appErr, ok := GetAppError(err)
	if !ok {
		return true
	}
	return appErr.Type.Fatal()
}
