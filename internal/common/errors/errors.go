// Package errors provides the standardized error taxonomy for the assistant:
// configuration errors (fatal at startup), remote-call errors (degraded to
// empty results or an apology), and parse errors (degraded to sentinels).
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeConfigMissing ErrorCode = "CONFIG_MISSING"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeQueryTimeout             ErrorCode = "QUERY_TIMEOUT"
	ErrCodeTableNotFound            ErrorCode = "TABLE_NOT_FOUND"
	ErrCodeRecordNotFound           ErrorCode = "RECORD_NOT_FOUND"

	ErrCodeLLMTimeout           ErrorCode = "LLM_TIMEOUT"
	ErrCodeLLMGenerationFailed  ErrorCode = "LLM_GENERATION_FAILED"
	ErrCodeSchemaMappingInvalid ErrorCode = "SCHEMA_MAPPING_INVALID"

	ErrCodeDateParseFailed ErrorCode = "DATE_PARSE_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// NewConfigMissingError creates a fatal configuration error.
func NewConfigMissingError(key string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConfigMissing,
		Message:   "Required configuration missing",
		Details:   fmt.Sprintf("key: %s", key),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(table string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("table: %s, error: %s", table, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryTimeoutError creates a retryable query timeout error.
func NewQueryTimeoutError(table string) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryTimeout,
		Message:   "Database query timeout",
		Details:   fmt.Sprintf("table: %s", table),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewTableNotFoundError creates a non-retryable missing-table error.
// Raised when the remote schema has no table under a candidate name.
func NewTableNotFoundError(table string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTableNotFound,
		Message:   "Table not found in remote schema",
		Details:   fmt.Sprintf("table: %s", table),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRecordNotFoundError creates a non-retryable empty-result error.
func NewRecordNotFoundError(table, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRecordNotFound,
		Message:   fmt.Sprintf("No matching rows in %s", table),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewLLMTimeoutError creates a retryable LLM timeout error.
func NewLLMTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodeLLMTimeout,
		Message:   "LLM generation timeout",
		Details:   "call exceeded configured timeout",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewLLMGenerationFailedError creates a retryable LLM error.
func NewLLMGenerationFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeLLMGenerationFailed,
		Message:   "LLM generation API error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSchemaMappingInvalidError creates a fatal schema-mapping error.
func NewSchemaMappingInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSchemaMappingInvalid,
		Message:   "Schema mapping configuration invalid",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDateParseFailedError creates a non-retryable parse error. Callers are
// expected to degrade to a sentinel value rather than fail the turn.
func NewDateParseFailedError(value string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDateParseFailed,
		Message:   "Unparsable date value",
		Details:   fmt.Sprintf("value: %q", value),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// CodeOf extracts the ErrorCode from err, or "" when err carries none.
func CodeOf(err error) ErrorCode {
	var se *StandardError
	if stderrors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsNotFound reports whether err represents a missing table or empty result
// rather than a transient failure.
func IsNotFound(err error) bool {
	code := CodeOf(err)
	return code == ErrCodeTableNotFound || code == ErrCodeRecordNotFound
}

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	var se *StandardError
	if stderrors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// GetErrorCategory returns the coarse category of the error code, used for
// metrics labels.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "CONFIG") || strings.Contains(codeStr, "SCHEMA"):
		return "CONFIG"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY") ||
		strings.Contains(codeStr, "TABLE") || strings.Contains(codeStr, "RECORD"):
		return "DATABASE"
	case strings.Contains(codeStr, "LLM"):
		return "AI"
	case strings.Contains(codeStr, "PARSE"):
		return "PARSE"
	default:
		return "OTHER"
	}
}
