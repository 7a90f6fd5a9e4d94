package response

import "fmt"

// Error represents a structured error from the response package
type Error interface {
	error
	Code() ErrorCode
	Unwrap() error
}

type ErrorCode string

const (
	ErrCodeNoMatchingKey          ErrorCode = "no_matching_key"
	ErrCodeAlreadyEncrypted       ErrorCode = "already_encrypted"
	ErrCodeUnexpectedContentShape ErrorCode = "unexpected_content_shape"
	ErrCodeValidationFailed       ErrorCode = "validation_failed"
	ErrCodeVerificationFailed     ErrorCode = "verification_failed"
	ErrCodeNotVerified            ErrorCode = "not_verified"
	ErrCodeDecryption             ErrorCode = "decryption"
	ErrCodeSignerNotTrusted       ErrorCode = "signer_not_trusted"
)

// ResponseError represents a structured error from the response package.
// For validation and verification failures Errors holds every problem found.
type ResponseError struct {
	code    ErrorCode
	message string
	wrapped error
	Errors  []error
}

func (e *ResponseError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrapped)
	}
	return e.message
}

func (e *ResponseError) Code() ErrorCode { return e.code }
func (e *ResponseError) Unwrap() error   { return e.wrapped }

// NewNoMatchingKeyError creates an error for an envelope with no key for the recipient.
//
// The returned error will have code ErrCodeNoMatchingKey.
func NewNoMatchingKeyError(recipient string) error {
	return &ResponseError{code: ErrCodeNoMatchingKey, message: fmt.Sprintf("no key for recipient %q", recipient)}
}

// NewAlreadyEncryptedError creates an error for an operation that needs the decrypted document.
//
// The returned error will have code ErrCodeAlreadyEncrypted.
func NewAlreadyEncryptedError(msg string) error {
	return &ResponseError{code: ErrCodeAlreadyEncrypted, message: msg}
}

// NewUnexpectedContentShapeError creates an error for a response document with the wrong number of data files.
//
// The returned error will have code ErrCodeUnexpectedContentShape.
func NewUnexpectedContentShapeError(msg string) error {
	return &ResponseError{code: ErrCodeUnexpectedContentShape, message: msg}
}

// NewValidationFailedError reports all errors found while validating the response document.
//
// The returned error will have code ErrCodeValidationFailed.
func NewValidationFailedError(errs []error) error {
	return &ResponseError{
		code:    ErrCodeValidationFailed,
		message: fmt.Sprintf("response validation failed with %d error(s)", len(errs)),
		Errors:  errs,
	}
}

// WrapValidationFailedError is used when the response document cannot be parsed.
//
// The returned error will have code ErrCodeValidationFailed.
func WrapValidationFailedError(err error, msg string) error {
	return &ResponseError{code: ErrCodeValidationFailed, message: msg, wrapped: err, Errors: []error{err}}
}

// NewVerificationFailedError reports all errors found while verifying the response signatures.
//
// The returned error will have code ErrCodeVerificationFailed.
func NewVerificationFailedError(errs []error) error {
	return &ResponseError{
		code:    ErrCodeVerificationFailed,
		message: fmt.Sprintf("response verification failed with %d error(s)", len(errs)),
		Errors:  errs,
	}
}

// NewNotVerifiedError creates an error for reading content before the response was verified.
//
// The returned error will have code ErrCodeNotVerified.
func NewNotVerifiedError(msg string) error {
	return &ResponseError{code: ErrCodeNotVerified, message: msg}
}

// WrapDecryptionError wraps an error from the envelope service.
//
// The returned error will have code ErrCodeDecryption.
func WrapDecryptionError(err error, msg string) error {
	return &ResponseError{code: ErrCodeDecryption, message: msg, wrapped: err}
}

// NewSignerNotTrustedError creates an error for a response signed by a key outside the pinned set.
//
// The returned error will have code ErrCodeSignerNotTrusted.
func NewSignerNotTrustedError(msg string) error {
	return &ResponseError{code: ErrCodeSignerNotTrusted, message: msg}
}

// WrapSignerNotTrustedError wraps an error hit while checking the response signer.
//
// The returned error will have code ErrCodeSignerNotTrusted.
func WrapSignerNotTrustedError(err error, msg string) error {
	return &ResponseError{code: ErrCodeSignerNotTrusted, message: msg, wrapped: err}
}
