package services

import "fmt"

// Error represents a structured error from the services package
type Error interface {
	error
	Code() ErrorCode
	Unwrap() error
}

type ErrorCode string

const (
	// ErrCodeWrongType is used when the claim upload is missing or has an unsupported MIME type
	ErrCodeWrongType ErrorCode = "wrong_type"

	// ErrCodeInvalidClaim is used when the claim cannot be parsed or its signature does not verify
	ErrCodeInvalidClaim ErrorCode = "invalid_claim"

	// ErrCodeMissingRecipient is used when an encrypted response was requested without a recipient certificate
	ErrCodeMissingRecipient ErrorCode = "missing_recipient"

	// ErrCodeResponse is used when the service fails to build, sign or encrypt the response
	ErrCodeResponse ErrorCode = "response"
)

// ServiceError represents a structured error from the services package
type ServiceError struct {
	code    ErrorCode
	message string
	wrapped error
}

func (e *ServiceError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrapped)
	}
	return e.message
}

func (e *ServiceError) Code() ErrorCode { return e.code }
func (e *ServiceError) Unwrap() error   { return e.wrapped }

// NewWrongTypeError creates an error for a missing or unsupported claim upload.
//
// The returned error will have code ErrCodeWrongType.
func NewWrongTypeError(msg string) error {
	return &ServiceError{code: ErrCodeWrongType, message: msg}
}

// NewInvalidClaimError creates an error for a claim that failed the signature checks.
//
// The returned error will have code ErrCodeInvalidClaim.
func NewInvalidClaimError(msg string) error {
	return &ServiceError{code: ErrCodeInvalidClaim, message: msg}
}

// WrapInvalidClaimError wraps a parsing or verification error.
//
// The returned error will have code ErrCodeInvalidClaim.
func WrapInvalidClaimError(err error, msg string) error {
	return &ServiceError{code: ErrCodeInvalidClaim, message: msg, wrapped: err}
}

// NewMissingRecipientError creates an error for a request without a recipient certificate.
//
// The returned error will have code ErrCodeMissingRecipient.
func NewMissingRecipientError(msg string) error {
	return &ServiceError{code: ErrCodeMissingRecipient, message: msg}
}

// WrapMissingRecipientError wraps an error decoding the recipient certificate.
//
// The returned error will have code ErrCodeMissingRecipient.
func WrapMissingRecipientError(err error, msg string) error {
	return &ServiceError{code: ErrCodeMissingRecipient, message: msg, wrapped: err}
}

// WrapResponseError wraps an error hit while creating the response.
//
// The returned error will have code ErrCodeResponse.
func WrapResponseError(err error, msg string) error {
	return &ServiceError{code: ErrCodeResponse, message: msg, wrapped: err}
}
