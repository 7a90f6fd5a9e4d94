package workflow

import "fmt"

// Error represents a structured error from the workflow package
type Error interface {
	error
	Code() ErrorCode
	Unwrap() error
}

type ErrorCode string

const (
	ErrCodeSigningFailed   ErrorCode = "signing_failed"
	ErrCodeInvalidResponse ErrorCode = "invalid_response"
	ErrCodeEmptyResponse   ErrorCode = "empty_response"
	ErrCodeResponseFailed  ErrorCode = "response_failed"
)

// WorkflowError is returned when a step of the round trip stops the run.
type WorkflowError struct {
	code    ErrorCode
	message string
	wrapped error
}

func (e *WorkflowError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrapped)
	}
	return e.message
}

func (e *WorkflowError) Code() ErrorCode { return e.code }
func (e *WorkflowError) Unwrap() error   { return e.wrapped }

// NewSigningFailedError is returned when the signed claim does not verify.
//
// The returned error will have code ErrCodeSigningFailed.
func NewSigningFailedError() error {
	return &WorkflowError{code: ErrCodeSigningFailed, message: "Signing failed."}
}

// NewInvalidResponseError is returned when the service reply is not a valid envelope.
//
// The returned error will have code ErrCodeInvalidResponse.
func NewInvalidResponseError() error {
	return &WorkflowError{code: ErrCodeInvalidResponse, message: "Got an invalid response."}
}

// WrapInvalidResponseError wraps a failure to parse the service reply.
//
// The returned error will have code ErrCodeInvalidResponse.
func WrapInvalidResponseError(err error) error {
	return &WorkflowError{code: ErrCodeInvalidResponse, message: "Got an invalid response.", wrapped: err}
}

// NewEmptyResponseError is returned when the service replied with no content.
//
// The returned error will have code ErrCodeEmptyResponse.
func NewEmptyResponseError() error {
	return &WorkflowError{code: ErrCodeEmptyResponse, message: "The response is empty!"}
}

// WrapResponseFailedError wraps a failure to decrypt, verify or read the response.
//
// The returned error will have code ErrCodeResponseFailed.
func WrapResponseFailedError(err error, msg string) error {
	return &WorkflowError{code: ErrCodeResponseFailed, message: msg, wrapped: err}
}
