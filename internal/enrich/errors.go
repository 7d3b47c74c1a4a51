package enrich

import "fmt"

// ErrorCode classifies enrichment transport failures.
type ErrorCode string

const (
	ErrServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrRateLimited        ErrorCode = "RATE_LIMITED"
	ErrRequestRejected    ErrorCode = "REQUEST_REJECTED"
	ErrInvalidPayload     ErrorCode = "INVALID_PAYLOAD"
)

// Error is a structured error for enrichment failures.
type Error struct {
	Code      ErrorCode
	Message   string
	Status    int // HTTP status, 0 if the request never completed
	Retryable bool
	Cause     error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsRetryable returns whether this error is retryable.
func (e *Error) IsRetryable() bool {
	return e.Retryable
}

// statusError maps a non-OK HTTP response to an Error. Server-side and
// throttling failures are retryable; other client errors are not.
func statusError(status int, body string) *Error {
	if body == "" {
		body = "unknown error"
	}
	e := &Error{
		Code:    ErrRequestRejected,
		Message: fmt.Sprintf("Enrichment API error (%d): %s", status, body),
		Status:  status,
	}
	switch {
	case status == 429:
		e.Code, e.Retryable = ErrRateLimited, true
	case status >= 500:
		e.Code, e.Retryable = ErrServiceUnavailable, true
	}
	return e
}
