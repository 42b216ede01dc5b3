package utils

import (
	"errors"
	"net/http"
	"time"
)

// DomainError is a failure caused by the client's request. Its message is
// safe to return to the caller; everything else is reported as a 500.
type DomainError struct {
	Status  int
	Message string
	// RetryAfter is set on 429s
	RetryAfter time.Duration
}

func (e *DomainError) Error() string {
	return e.Message
}

func NewDomainError(message string) *DomainError {
	return &DomainError{Status: http.StatusBadRequest, Message: message}
}

func NewNotFoundError(message string) *DomainError {
	return &DomainError{Status: http.StatusNotFound, Message: message}
}

func NewUnauthorizedError(message string) *DomainError {
	return &DomainError{Status: http.StatusUnauthorized, Message: message}
}

func NewForbiddenError(message string) *DomainError {
	return &DomainError{Status: http.StatusForbidden, Message: message}
}

func NewTooManyRequestsError(message string, retryAfter time.Duration) *DomainError {
	return &DomainError{Status: http.StatusTooManyRequests, Message: message, RetryAfter: retryAfter}
}

// AsDomainError reports whether err carries a DomainError
func AsDomainError(err error) (*DomainError, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
