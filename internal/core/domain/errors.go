package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrTransport           = errors.New("transport failure")
	ErrMalformedResponse   = errors.New("malformed response")
	ErrNoAnalysisAvailable = errors.New("no analysis available")
	ErrProcessingFailed    = errors.New("processing failed")
	ErrInFlight            = errors.New("operation already in flight")
	ErrInvalidInput        = errors.New("invalid input")
	ErrKeyNotFound         = errors.New("key not found")
	ErrTemporary           = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// ValidationError rejects user input before any network call is made.
type ValidationError struct {
	Field   string
	Title   string
	Message string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "validation error"
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// TransportError is the explicit error shape returned by the backend gateway.
// StatusCode is zero when the request never produced an HTTP response.
type TransportError struct {
	Operation  string
	StatusCode int
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	if e == nil {
		return "transport error"
	}
	var b strings.Builder
	b.WriteString(e.Operation)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " status %d", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil && e.Message == "" {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// StatusCodeOf returns the HTTP status carried by err, or zero.
func StatusCodeOf(err error) int {
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return transportErr.StatusCode
	}
	return 0
}

// userFacing is implemented by errors that already carry display text.
type userFacing interface {
	UserMessage() string
}

// UserMessage renders any error produced by the client core as text for the user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var facing userFacing
	if errors.As(err, &facing) && facing.UserMessage() != "" {
		return facing.UserMessage()
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Message
	}

	var transportErr *TransportError
	switch {
	case IsKind(err, ErrNoAnalysisAvailable):
		return "No document ID provided and no recent analysis found. Please upload a document first."
	case IsKind(err, ErrProcessingFailed):
		return "Document processing failed. Please upload the document again."
	case IsKind(err, ErrMalformedResponse):
		return "Analysis data is incomplete or malformed."
	case errors.As(err, &transportErr) && transportErr.Message != "":
		return transportErr.Message
	default:
		return "Something went wrong. Please try again later."
	}
}
