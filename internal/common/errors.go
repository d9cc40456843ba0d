package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Error codes: the per-document failure taxonomy plus ambient conditions.
const (
	CodeConfigError         = "CONFIG_ERROR"
	CodeInvalidInput        = "INVALID_INPUT"
	CodeUnsupportedType     = "UNSUPPORTED_TYPE"
	CodeExtractFailed       = "EXTRACT_FAILED"
	CodeAIResponseMalformed = "AI_RESPONSE_MALFORMED"
	CodeTemplateWriteFailed = "TEMPLATE_WRITE_FAILED"
	CodeCapabilityMissing   = "CAPABILITY_MISSING"
	CodeArchiveFailed       = "ARCHIVE_FAILED"
	CodeNotFound            = "NOT_FOUND"
	CodeInternal            = "INTERNAL"
)

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
)

// NewAppError creates a new application error
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WrapError wraps an error with additional context
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// CodeOf returns the AppError code anywhere in err's chain, or "" when absent.
func CodeOf(err error) string {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}
