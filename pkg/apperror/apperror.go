// Package apperror is the structured application error this engine raises
// at its non-hot-path boundaries (config validation, rewrite/classify
// failures, history export, the HTTP API) — spec.md §7's own five error
// kinds are the hot-path ones and are handled inline per entry point
// without ever allocating one of these.
package apperror

import (
	"fmt"
	"runtime"
	"time"
)

// AppError is the standardized non-hot-path error shape.
type AppError struct {
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Component  string                 `json:"component"`
	Operation  string                 `json:"operation"`
	Cause      error                  `json:"cause,omitempty"`
	StackTrace string                 `json:"stack_trace,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
	Severity   Severity               `json:"severity"`
}

// Severity levels for errors.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// Error codes, scoped to this engine's own boundaries.
const (
	// Configuration
	CodeConfigInvalid    = "CONFIG_INVALID"
	CodeConfigNotFound   = "CONFIG_NOT_FOUND"
	CodeConfigValidation = "CONFIG_VALIDATION_FAILED"

	// Rewriter/classification (spec.md §7's TransformFailure/UnmodifiableClass,
	// surfaced here only when the rewriter's classification is consulted
	// through the API rather than the watched.* hot path directly)
	CodeRewriteFailed       = "REWRITE_FAILED"
	CodeRewriteUnmodifiable = "REWRITE_UNMODIFIABLE_TYPE"

	// HistoryStore / export
	CodeHistoryExportFailed = "HISTORY_EXPORT_FAILED"
	CodeHistoryLookupFailed = "HISTORY_LOOKUP_FAILED"

	// API boundary
	CodeAPIInvalidRequest = "API_INVALID_REQUEST"
	CodeAPINotFound       = "API_NOT_FOUND"

	// System
	CodeSystemFailure = "SYSTEM_FAILURE"
	CodeSystemTimeout = "SYSTEM_TIMEOUT"
)

// New creates a new AppError, capturing the caller's file:line the way the
// teacher's error constructor does.
func New(code, component, operation, message string) *AppError {
	_, file, line, _ := runtime.Caller(1)

	return &AppError{
		Code:       code,
		Message:    message,
		Component:  component,
		Operation:  operation,
		StackTrace: fmt.Sprintf("%s:%d", file, line),
		Metadata:   make(map[string]interface{}),
		Timestamp:  time.Now(),
		Severity:   SeverityMedium,
	}
}

// NewCritical creates a critical-severity error.
func NewCritical(code, component, operation, message string) *AppError {
	err := New(code, component, operation, message)
	err.Severity = SeverityCritical
	return err
}

// NewWithSeverity creates an error with a specific severity.
func NewWithSeverity(severity Severity, code, component, operation, message string) *AppError {
	err := New(code, component, operation, message)
	err.Severity = severity
	return err
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %s: %v", e.Component, e.Operation, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s: %s", e.Component, e.Operation, e.Code, e.Message)
}

// Unwrap lets errors.Is/errors.As see through to Cause.
func (e *AppError) Unwrap() error { return e.Cause }

// Wrap sets cause as the wrapped error.
func (e *AppError) Wrap(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithMetadata attaches a key/value pair for structured logging.
func (e *AppError) WithMetadata(key string, value interface{}) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// WithSeverity overrides the severity.
func (e *AppError) WithSeverity(severity Severity) *AppError {
	e.Severity = severity
	return e
}

// IsCritical reports whether the error is critical severity.
func (e *AppError) IsCritical() bool {
	return e.Severity == SeverityCritical
}

// IsRecoverable reports whether the caller might reasonably retry.
func (e *AppError) IsRecoverable() bool {
	switch e.Severity {
	case SeverityCritical, SeverityHigh:
		return false
	default:
		return true
	}
}

// ToMap renders the error for structured logging (logrus.Fields-shaped).
func (e *AppError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code":      e.Code,
		"error_message":   e.Message,
		"error_component": e.Component,
		"error_operation": e.Operation,
		"error_severity":  string(e.Severity),
		"error_timestamp": e.Timestamp,
	}
	if e.StackTrace != "" {
		result["error_stack_trace"] = e.StackTrace
	}
	if e.Cause != nil {
		result["error_cause"] = e.Cause.Error()
	}
	for k, v := range e.Metadata {
		result[fmt.Sprintf("error_meta_%s", k)] = v
	}
	return result
}

// ConfigError creates a configuration error.
func ConfigError(operation, message string) *AppError {
	return New(CodeConfigInvalid, "config", operation, message)
}

// RewriteError creates a rewriter/classification error.
func RewriteError(operation, message string) *AppError {
	return New(CodeRewriteFailed, "rewriter", operation, message)
}

// ExportError creates a history-export error.
func ExportError(operation, message string) *AppError {
	return New(CodeHistoryExportFailed, "export", operation, message)
}

// APIError creates an HTTP-API-boundary error.
func APIError(operation, message string) *AppError {
	return New(CodeAPIInvalidRequest, "server", operation, message)
}

// SystemError creates a critical system error.
func SystemError(operation, message string) *AppError {
	return NewCritical(CodeSystemFailure, "system", operation, message)
}

// IsAppError reports whether err is an *AppError.
func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

// AsAppError converts err to *AppError if possible.
func AsAppError(err error) (*AppError, bool) {
	appErr, ok := err.(*AppError)
	return appErr, ok
}

// WrapError wraps a plain error into an AppError, or returns it unchanged
// if it already is one.
func WrapError(err error, component, operation, message string) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := AsAppError(err); ok {
		return appErr
	}
	return New("WRAPPED_ERROR", component, operation, message).Wrap(err)
}
