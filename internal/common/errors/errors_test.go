// internal/common/errors/errors_test.go
package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructorsSetCodeAndRetryability(t *testing.T) {
	cases := []struct {
		name      string
		err       *StandardError
		code      ErrorCode
		retryable bool
	}{
		{"config missing", NewConfigMissingError("llm.api_key"), ErrCodeConfigMissing, false},
		{"query timeout", NewQueryTimeoutError("books"), ErrCodeQueryTimeout, true},
		{"query failed", NewQueryExecutionFailedError("books", stderrors.New("boom")), ErrCodeQueryExecutionFailed, true},
		{"table not found", NewTableNotFoundError("catalog"), ErrCodeTableNotFound, false},
		{"record not found", NewRecordNotFoundError("members", "id m1"), ErrCodeRecordNotFound, false},
		{"llm timeout", NewLLMTimeoutError(), ErrCodeLLMTimeout, true},
		{"llm failed", NewLLMGenerationFailedError(stderrors.New("boom")), ErrCodeLLMGenerationFailed, true},
		{"mapping invalid", NewSchemaMappingInvalidError("bad version"), ErrCodeSchemaMappingInvalid, false},
		{"date parse", NewDateParseFailedError("next tuesday"), ErrCodeDateParseFailed, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.code, tc.err.Code)
			assert.Equal(t, tc.retryable, tc.err.Retryable)
			assert.False(t, tc.err.Timestamp.IsZero())
			assert.Contains(t, tc.err.Error(), string(tc.code))
		})
	}
}

func TestCodeOfUnwrapsWrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("probing: %w", NewTableNotFoundError("catalog"))

	assert.Equal(t, ErrCodeTableNotFound, CodeOf(wrapped))
	assert.Equal(t, ErrorCode(""), CodeOf(stderrors.New("plain")))
	assert.Equal(t, ErrorCode(""), CodeOf(nil))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(NewTableNotFoundError("t")))
	assert.True(t, IsNotFound(NewRecordNotFoundError("t", "")))
	assert.False(t, IsNotFound(NewQueryTimeoutError("t")))
	assert.False(t, IsNotFound(nil))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewQueryTimeoutError("t")))
	assert.False(t, IsRetryable(NewConfigMissingError("k")))
	assert.False(t, IsRetryable(stderrors.New("plain")))
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "CONFIG", GetErrorCategory(ErrCodeConfigMissing))
	assert.Equal(t, "CONFIG", GetErrorCategory(ErrCodeSchemaMappingInvalid))
	assert.Equal(t, "DATABASE", GetErrorCategory(ErrCodeQueryTimeout))
	assert.Equal(t, "AI", GetErrorCategory(ErrCodeLLMTimeout))
	assert.Equal(t, "PARSE", GetErrorCategory(ErrCodeDateParseFailed))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrorCode("WEIRD")))
}
