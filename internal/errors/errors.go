package errors

import (
	stderrors "errors"
	"fmt"
	"strconv"
)

// AmanError is the structured error type for amanrdf.
// It carries enough context for logging, CLI presentation and exit handling.
type AmanError struct {
	// Code is the unique error code (e.g., "ERR_207_INDEX_MISSING").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Network, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *AmanError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *AmanError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an AmanError with the same code.
func (e *AmanError) Is(target error) bool {
	if t, ok := target.(*AmanError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *AmanError) WithDetail(key, value string) *AmanError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *AmanError) WithSuggestion(suggestion string) *AmanError {
	e.Suggestion = suggestion
	return e
}

// New creates a new AmanError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *AmanError {
	return &AmanError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates an AmanError from an existing error.
func Wrap(code string, err error) *AmanError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *AmanError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// IOError creates an I/O-related error.
func IOError(message string, cause error) *AmanError {
	return New(ErrCodeFileNotFound, message, cause)
}

// BackendError creates a backend connectivity error. These are retryable.
func BackendError(message string, cause error) *AmanError {
	return New(ErrCodeBackendUnavailable, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *AmanError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *AmanError {
	return New(ErrCodeInternal, message, cause)
}

// DispatchError reports a bulk write that did not reach the backend.
// The batch is gone; callers log and continue.
func DispatchError(index string, size int, cause error) *AmanError {
	return New(ErrCodeDispatchFailed, fmt.Sprintf("bulk dispatch to %q failed", index), cause).
		WithDetail("index", index).
		WithDetail("batch_size", strconv.Itoa(size))
}

// IndexMissingError reports an index that must exist before a run can start.
func IndexMissingError(index string) *AmanError {
	return New(ErrCodeIndexMissing, fmt.Sprintf("required index %q does not exist", index), nil).
		WithDetail("index", index).
		WithSuggestion("run the baseline pass with extended indexing enabled first")
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var ae *AmanError
	if stderrors.As(err, &ae) {
		return ae.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	var ae *AmanError
	if stderrors.As(err, &ae) {
		return ae.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from an AmanError anywhere in the chain.
// Returns empty string if there is none.
func GetCode(err error) string {
	var ae *AmanError
	if stderrors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// GetCategory extracts the category from an AmanError.
func GetCategory(err error) Category {
	var ae *AmanError
	if stderrors.As(err, &ae) {
		return ae.Category
	}
	return ""
}
