package errors

import (
	"fmt"
)

// CodexError is the structured error type for CodexKeep.
// It provides rich context for error handling, logging, and batch reporting.
type CodexError struct {
	// Code is the unique error code (e.g., "ERR_101_NO_METADATA").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Parse, Template, Storage, ...).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	// For field validation errors this names the offending field(s).
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *CodexError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *CodexError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with CodexError.
func (e *CodexError) Is(target error) bool {
	if t, ok := target.(*CodexError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *CodexError) WithDetail(key, value string) *CodexError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *CodexError) WithSuggestion(suggestion string) *CodexError {
	e.Suggestion = suggestion
	return e
}

// New creates a new CodexError with the given code and message.
// Category and severity are derived from the code.
func New(code string, message string, cause error) *CodexError {
	return &CodexError{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Severity: severityFromCode(code),
		Cause:    cause,
	}
}

// Newf creates a new CodexError with a formatted message.
func Newf(code string, format string, args ...any) *CodexError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// Wrap creates a CodexError from an existing error.
// The error's message becomes the CodexError message.
func Wrap(code string, err error) *CodexError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// NoMetadata reports a document with a missing or empty metadata block.
// Callers distinguish this from field-level failures to decide skip vs fix.
func NoMetadata(path string) *CodexError {
	return New(ErrCodeNoMetadata, "document has no metadata block", nil).
		WithDetail("path", path).
		WithSuggestion("add a leading '---' metadata block with at least an id and type")
}

// MissingField reports a required metadata field that is absent.
func MissingField(field string) *CodexError {
	return Newf(ErrCodeMissingField, "missing required field %q", field).
		WithDetail("field", field)
}

// FieldValidation reports a metadata field that is present but invalid.
func FieldValidation(field, reason string) *CodexError {
	return Newf(ErrCodeInvalidField, "field %q: %s", field, reason).
		WithDetail("field", field)
}

// TemplateError creates a template registration error with the given code.
func TemplateError(code, message string) *CodexError {
	return New(code, message, nil)
}

// StorageError creates a storage-related error.
func StorageError(message string, cause error) *CodexError {
	return New(ErrCodeWriteFailed, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *CodexError {
	return New(ErrCodeInternal, message, cause)
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if ce, ok := err.(*CodexError); ok {
		return ce.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a CodexError.
// Returns empty string if not a CodexError.
func GetCode(err error) string {
	if ce, ok := err.(*CodexError); ok {
		return ce.Code
	}
	return ""
}

// GetCategory extracts the category from a CodexError.
// Returns empty string if not a CodexError.
func GetCategory(err error) Category {
	if ce, ok := err.(*CodexError); ok {
		return ce.Category
	}
	return ""
}
