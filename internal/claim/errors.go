package claim

import "fmt"

// Error represents a structured error from the claim package
type Error interface {
	error
	Code() ErrorCode
	Unwrap() error
}

type ErrorCode string

const (
	ErrCodeContainer ErrorCode = "container"
)

// ClaimError represents a structured error from the claim package
type ClaimError struct {
	code    ErrorCode
	message string
	wrapped error
}

func (e *ClaimError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrapped)
	}
	return e.message
}

func (e *ClaimError) Code() ErrorCode { return e.code }
func (e *ClaimError) Unwrap() error   { return e.wrapped }

// NewContainerError creates an error for a claim operation that could not be applied.
//
// The returned error will have code ErrCodeContainer.
func NewContainerError(msg string) error {
	return &ClaimError{code: ErrCodeContainer, message: msg}
}

// WrapContainerError wraps an error from the container service or staging area.
//
// The returned error will have code ErrCodeContainer.
func WrapContainerError(err error, msg string) error {
	return &ClaimError{code: ErrCodeContainer, message: msg, wrapped: err}
}
