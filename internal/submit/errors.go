package submit

import "fmt"

// Error represents a structured error from the submit package
type Error interface {
	error
	Code() ErrorCode
	Unwrap() error
}

type ErrorCode string

const (
	// ErrCodeTransport is used when the request could not be made or the service did not answer 200 OK
	ErrCodeTransport ErrorCode = "transport"
)

// TransportError is returned for failed submissions.
// StatusCode is 0 when no HTTP response was received.
type TransportError struct {
	code       ErrorCode
	message    string
	wrapped    error
	StatusCode int
	Body       string
}

func (e *TransportError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrapped)
	}
	return e.message
}

func (e *TransportError) Code() ErrorCode { return e.code }
func (e *TransportError) Unwrap() error   { return e.wrapped }

// NewStatusError creates an error for a non-200 response, keeping the body the service sent.
//
// The returned error will have code ErrCodeTransport.
func NewStatusError(status int, body string) error {
	return &TransportError{
		code:       ErrCodeTransport,
		message:    fmt.Sprintf("server responded with HTTP %d: %s", status, body),
		StatusCode: status,
		Body:       body,
	}
}

// NewTransportError creates an error for a response that cannot be used.
//
// The returned error will have code ErrCodeTransport.
func NewTransportError(msg string) error {
	return &TransportError{code: ErrCodeTransport, message: msg}
}

// WrapTransportError wraps a connection or I/O failure.
//
// The returned error will have code ErrCodeTransport.
func WrapTransportError(err error, msg string) error {
	return &TransportError{code: ErrCodeTransport, message: msg, wrapped: err}
}
