package envelope

import "fmt"

// Error represents a structured error from the envelope package
type Error interface {
	error
	Code() ErrorCode
	Unwrap() error
}

type ErrorCode string

const (
	ErrCodeInvalid    ErrorCode = "invalid_envelope"
	ErrCodeKeyIndex   ErrorCode = "key_index"
	ErrCodeDecryption ErrorCode = "decryption"
	ErrCodeEncryption ErrorCode = "encryption"
)

// EnvelopeError represents a structured error from the envelope package
type EnvelopeError struct {
	code    ErrorCode
	message string
	wrapped error
}

func (e *EnvelopeError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrapped)
	}
	return e.message
}

func (e *EnvelopeError) Code() ErrorCode { return e.code }
func (e *EnvelopeError) Unwrap() error   { return e.wrapped }

// NewInvalidError creates an error for a malformed envelope.
//
// The returned error will have code ErrCodeInvalid.
func NewInvalidError(msg string) error {
	return &EnvelopeError{code: ErrCodeInvalid, message: msg}
}

// WrapInvalidError wraps an existing error as a malformed envelope error.
//
// The returned error will have code ErrCodeInvalid.
func WrapInvalidError(err error, msg string) error {
	return &EnvelopeError{code: ErrCodeInvalid, message: msg, wrapped: err}
}

// NewKeyIndexError creates an error for a recipient key index outside the envelope.
//
// The returned error will have code ErrCodeKeyIndex.
func NewKeyIndexError(msg string) error {
	return &EnvelopeError{code: ErrCodeKeyIndex, message: msg}
}

// NewDecryptionError creates a decryption error.
//
// The returned error will have code ErrCodeDecryption.
func NewDecryptionError(msg string) error {
	return &EnvelopeError{code: ErrCodeDecryption, message: msg}
}

// WrapDecryptionError wraps an existing error as a decryption error.
// Use this for card failures during key unwrapping and for body authentication failures.
//
// The returned error will have code ErrCodeDecryption.
func WrapDecryptionError(err error, msg string) error {
	return &EnvelopeError{code: ErrCodeDecryption, message: msg, wrapped: err}
}

// NewEncryptionError creates an encryption error.
//
// The returned error will have code ErrCodeEncryption.
func NewEncryptionError(msg string) error {
	return &EnvelopeError{code: ErrCodeEncryption, message: msg}
}

// WrapEncryptionError wraps an existing error as an encryption error.
//
// The returned error will have code ErrCodeEncryption.
func WrapEncryptionError(err error, msg string) error {
	return &EnvelopeError{code: ErrCodeEncryption, message: msg, wrapped: err}
}
