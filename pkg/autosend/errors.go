package autosend

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for errors.Is checks.
var (
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("invalid argument")
	// ErrUnauthorized matches every *AuthenticationError.
	ErrUnauthorized = errors.New("invalid or missing API key")
	// ErrRequest matches every *RequestError.
	ErrRequest = errors.New("request failed")
)

// Error is implemented by every error the SDK returns. Use errors.As with a
// variable of this type to handle all SDK failures in one place.
type Error interface {
	error
	AutosendError()
}

// ValidationError is returned before any request is sent when an argument
// fails a client-side check.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("validation failed: %s", e.Message)
	if e.Field != "" {
		msg += fmt.Sprintf(" (field=%q)", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value=%q)", fmt.Sprint(e.Value))
	}
	return msg
}

// Is implements errors.Is for sentinel error matching.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// AutosendError implements the Error interface.
func (e *ValidationError) AutosendError() {}

// AuthenticationError is returned when the API key is empty or the service
// answered 401.
type AuthenticationError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *AuthenticationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("authentication failed with status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("authentication failed: %s", e.Message)
}

// Is implements errors.Is for sentinel error matching.
func (e *AuthenticationError) Is(target error) bool {
	return target == ErrUnauthorized
}

// AutosendError implements the Error interface.
func (e *AuthenticationError) AutosendError() {}

// RequestError is returned for transport failures (StatusCode is 0 and Err
// holds the cause) and for any non-2xx response other than 401.
type RequestError struct {
	StatusCode int
	Message    string
	Body       string
	Err        error
}

func (e *RequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("api request failed with status %d: %s", e.StatusCode, e.Body)
	}
	return e.Message
}

// Unwrap returns the underlying transport error, if any.
func (e *RequestError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for sentinel error matching.
func (e *RequestError) Is(target error) bool {
	return target == ErrRequest
}

// AutosendError implements the Error interface.
func (e *RequestError) AutosendError() {}

func newValidationError(field string, value any, format string, args ...any) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: fmt.Sprintf(format, args...),
	}
}

func isErrorStatus(err error, status int) bool {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.StatusCode == status
	}
	return false
}

// IsBadRequest checks if the error represents a 400 Bad Request response.
func IsBadRequest(err error) bool {
	return isErrorStatus(err, http.StatusBadRequest)
}

// IsNotFound checks if the error represents a 404 Not Found response.
func IsNotFound(err error) bool {
	return isErrorStatus(err, http.StatusNotFound)
}

// IsConflict checks if the error represents a 409 Conflict response.
func IsConflict(err error) bool {
	return isErrorStatus(err, http.StatusConflict)
}

// IsValidation checks if the error was raised by client-side validation.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsUnauthorized checks if the error is an authentication failure.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
