package notary

import "fmt"

// Error represents a structured error from the notary package
type Error interface {
	error
	Code() ErrorCode
	Unwrap() error
}

type ErrorCode string

const (
	// ErrCodeRevoked means the responder answered with a status other than good
	ErrCodeRevoked ErrorCode = "revoked"

	// ErrCodeUnavailable means no usable answer could be obtained (no issuer, network failure, bad response)
	ErrCodeUnavailable ErrorCode = "unavailable"
)

// NotaryError represents a structured error from the notary package
type NotaryError struct {
	code    ErrorCode
	message string
	wrapped error
}

func (e *NotaryError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrapped)
	}
	return e.message
}

func (e *NotaryError) Code() ErrorCode { return e.code }
func (e *NotaryError) Unwrap() error   { return e.wrapped }

// NewRevokedError creates an error for a certificate the responder did not report as good.
//
// The returned error will have code ErrCodeRevoked.
func NewRevokedError(msg string) error {
	return &NotaryError{code: ErrCodeRevoked, message: msg}
}

// NewUnavailableError creates an error for a revocation check that could not be performed.
//
// The returned error will have code ErrCodeUnavailable.
func NewUnavailableError(msg string) error {
	return &NotaryError{code: ErrCodeUnavailable, message: msg}
}

// WrapUnavailableError wraps an existing error as an unavailable error.
//
// The returned error will have code ErrCodeUnavailable.
func WrapUnavailableError(err error, msg string) error {
	return &NotaryError{code: ErrCodeUnavailable, message: msg, wrapped: err}
}
