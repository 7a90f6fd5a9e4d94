package auth

import "fmt"

// Error represents a structured error from the auth package
type Error interface {
	error
	Code() ErrorCode
	Unwrap() error
}

type ErrorCode string

const (
	ErrCodeCertificateInvalid    ErrorCode = "certificate_invalid"
	ErrCodeSignatureInvalid      ErrorCode = "signature_invalid"
	ErrCodeRevocationCheckFailed ErrorCode = "revocation_check_failed"
)

// AuthError represents a structured error from the auth package
type AuthError struct {

	// code is the auth error code
	code ErrorCode

	// message is a human-readable error message
	message string

	// wrapped is the optional underlying error
	wrapped error
}

func (e *AuthError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrapped)
	}
	return e.message
}

func (e *AuthError) Code() ErrorCode { return e.code }
func (e *AuthError) Unwrap() error   { return e.wrapped }

// NewCertificateInvalidError creates an error for a certificate outside its validity window.
//
// The returned error will have code ErrCodeCertificateInvalid.
func NewCertificateInvalidError(msg string) error {
	return &AuthError{code: ErrCodeCertificateInvalid, message: msg}
}

// WrapSignatureInvalidError wraps a failed verification of the challenge signature.
//
// The returned error will have code ErrCodeSignatureInvalid.
func WrapSignatureInvalidError(err error, msg string) error {
	return &AuthError{code: ErrCodeSignatureInvalid, message: msg, wrapped: err}
}

// WrapRevocationCheckFailedError wraps a revocation check that did not report the certificate as good.
//
// The returned error will have code ErrCodeRevocationCheckFailed.
func WrapRevocationCheckFailedError(err error, msg string) error {
	return &AuthError{code: ErrCodeRevocationCheckFailed, message: msg, wrapped: err}
}
