package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies an error for retry and reporting decisions.
type Kind string

const (
	KindValidation  Kind = "validation"
	KindExtraction  Kind = "extraction"
	KindNotReady    Kind = "page_not_ready"
	KindUnsupported Kind = "unsupported_platform"
	KindNetwork     Kind = "network"
	KindTimeout     Kind = "timeout"
	KindNotFound    Kind = "not_found"
	KindRateLimit   Kind = "rate_limit"
	KindServer      Kind = "server_error"
	KindStorage     Kind = "storage"
	KindUnavailable Kind = "service_unavailable"
	KindUnknown     Kind = "unknown"
)

// Error carries a kind alongside the message so callers can decide whether
// to retry, fall back, or report immediately.
type Error struct {
	Kind    Kind
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a typed error.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a typed error around an underlying cause.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// WithCode attaches an HTTP-ish status code to the error.
func (e *Error) WithCode(code int) *Error {
	e.Code = code
	return e
}

// KindOf extracts the kind from any error, defaulting to unknown.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsRetryable reports whether an error kind is transient. Validation and
// unsupported-platform errors are terminal and must never be retried.
func IsRetryable(kind Kind) bool {
	switch kind {
	case KindNetwork, KindTimeout, KindRateLimit, KindServer:
		return true
	default:
		return false
	}
}

// IsRetryableError applies IsRetryable to a concrete error value. Untyped
// errors are treated as transient, matching how interrupted downloads with
// no classification are handled.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	var e *Error
	if stderrors.As(err, &e) {
		return IsRetryable(e.Kind)
	}
	return true
}

// IsRetryableStatusCode maps HTTP status codes onto the retry policy.
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // network error, no response
		return true
	case 429:
		return true
	case 500, 502, 503, 504:
		return true
	case 401, 403, 404:
		return false
	default:
		return statusCode >= 500
	}
}

// KindForStatusCode classifies an HTTP status code.
func KindForStatusCode(statusCode int) Kind {
	switch {
	case statusCode == 404:
		return KindNotFound
	case statusCode == 429:
		return KindRateLimit
	case statusCode >= 500:
		return KindServer
	case statusCode >= 400:
		return KindNetwork
	default:
		return KindUnknown
	}
}
