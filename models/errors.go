package models

import (
	"context"
	"errors"
	"fmt"
)

// Error codes used in API responses and internal error handling.
const (
	ErrCodeTimeout      = "FETCH_TIMEOUT"
	ErrCodeNavigation   = "NAVIGATION_FAILED"
	ErrCodeFieldMissing = "FIELD_MISSING"
	ErrCodeBrowserCrash = "BROWSER_CRASH"
	ErrCodeStore        = "STORE_IO"
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MonitorError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type MonitorError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *MonitorError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *MonitorError) Unwrap() error {
	return e.Err
}

// NewMonitorError creates a new MonitorError.
func NewMonitorError(code, message string, err error) *MonitorError {
	return &MonitorError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *MonitorError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}

// Categorize wraps err with the code that best describes it. Context
// expiry becomes FETCH_TIMEOUT so a deadline hit mid-navigation and a
// deadline hit mid-read report the same way; everything else keeps the
// supplied default code.
func Categorize(err error, code, message string) *MonitorError {
	var me *MonitorError
	if errors.As(err, &me) {
		return me
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewMonitorError(ErrCodeTimeout, message, err)
	}
	return NewMonitorError(code, message, err)
}

// CodeOf extracts the error code from err, or ErrCodeInternal when err
// carries none.
func CodeOf(err error) string {
	var me *MonitorError
	if errors.As(err, &me) {
		return me.Code
	}
	return ErrCodeInternal
}
