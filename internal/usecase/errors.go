package usecase

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrorInvalidInput      ErrorCode = "INVALID_INPUT"
	ErrorOracleUnavailable ErrorCode = "ORACLE_UNAVAILABLE"
	ErrorRateLimited       ErrorCode = "RATE_LIMITED"
	ErrorUpstream          ErrorCode = "UPSTREAM_ERROR"
	ErrorInternal          ErrorCode = "INTERNAL_ERROR"
)

type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

// CodeOf returns the code carried by err, INTERNAL_ERROR for foreign errors
// and "" for nil.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Code
	}
	return ErrorInternal
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}

func isRateLimited(err error) bool {
	status, ok := upstreamStatusCode(err)
	return ok && status == http.StatusTooManyRequests
}
