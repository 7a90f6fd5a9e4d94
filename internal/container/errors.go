package container

import "fmt"

// Error represents a structured error from the container package
type Error interface {
	error
	Code() ErrorCode
	Unwrap() error
}

type ErrorCode string

const (
	// ErrCodeContainer is returned when an operation is not allowed on the container in its current state
	ErrCodeContainer ErrorCode = "container"

	// ErrCodeInvalid is returned by Validate and ReadFrom for structurally broken containers
	ErrCodeInvalid ErrorCode = "invalid_container"

	// ErrCodeSignature is returned by Verify for signatures that do not hold
	ErrCodeSignature ErrorCode = "invalid_signature"
)

// ContainerError represents a structured error from the container package
type ContainerError struct {
	code    ErrorCode
	message string
	wrapped error
}

func (e *ContainerError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrapped)
	}
	return e.message
}

func (e *ContainerError) Code() ErrorCode { return e.code }
func (e *ContainerError) Unwrap() error   { return e.wrapped }

// NewContainerError creates an error for an operation the container does not allow.
//
// The returned error will have code ErrCodeContainer.
func NewContainerError(msg string) error {
	return &ContainerError{code: ErrCodeContainer, message: msg}
}

// WrapContainerError wraps an existing error as a container error.
//
// The returned error will have code ErrCodeContainer.
func WrapContainerError(err error, msg string) error {
	return &ContainerError{code: ErrCodeContainer, message: msg, wrapped: err}
}

// NewInvalidError creates a structural validation error.
//
// The returned error will have code ErrCodeInvalid.
func NewInvalidError(msg string) error {
	return &ContainerError{code: ErrCodeInvalid, message: msg}
}

// WrapInvalidError wraps an existing error as a structural validation error.
//
// The returned error will have code ErrCodeInvalid.
func WrapInvalidError(err error, msg string) error {
	return &ContainerError{code: ErrCodeInvalid, message: msg, wrapped: err}
}

// NewSignatureError creates a signature verification error.
//
// The returned error will have code ErrCodeSignature.
func NewSignatureError(msg string) error {
	return &ContainerError{code: ErrCodeSignature, message: msg}
}

// WrapSignatureError wraps an existing error as a signature verification error.
//
// The returned error will have code ErrCodeSignature.
func WrapSignatureError(err error, msg string) error {
	return &ContainerError{code: ErrCodeSignature, message: msg, wrapped: err}
}
