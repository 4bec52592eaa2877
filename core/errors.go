package core

import "github.com/pkg/errors"

// Error codes returned to API clients.
const (
	CodeNotFound              = "not_found"
	CodeForbidden             = "forbidden"
	CodeValidationFailed      = "validation_failed"
	CodeSecurityCheckFailed   = "security_check_failed"
	CodeRateLimited           = "rate_limited"
	CodeDependencyUnavailable = "dependency_unavailable"
	CodeUnexpected            = "unexpected"
)

var (
	ErrNotFound              = errors.New("not found")
	ErrForbidden             = errors.New("permission denied")
	ErrSecurityCheckFailed   = errors.New("security check failed")
	ErrRateLimited           = errors.New("please wait a few seconds before submitting again")
	ErrDependencyUnavailable = errors.New("a required service is not available")
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return "validation failed"
	}
	return err.Err.Error()
}

// ErrorCode maps err to the code clients see in failure responses.
func ErrorCode(err error) string {
	switch cause := errors.Cause(err); cause {
	case nil:
		return ""
	case ErrNotFound:
		return CodeNotFound
	case ErrForbidden:
		return CodeForbidden
	case ErrSecurityCheckFailed:
		return CodeSecurityCheckFailed
	case ErrRateLimited:
		return CodeRateLimited
	case ErrDependencyUnavailable:
		return CodeDependencyUnavailable
	default:
		if _, ok := cause.(*ValidationError); ok {
			return CodeValidationFailed
		}
		return CodeUnexpected
	}
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
