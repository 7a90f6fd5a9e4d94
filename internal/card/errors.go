package card

import "fmt"

// Error represents a structured error from the card package
type Error interface {
	error
	Code() ErrorCode
	Unwrap() error
}

type ErrorCode string

const (
	ErrCodeHardwareUnavailable ErrorCode = "hardware_unavailable"
	ErrCodeIndexOutOfRange     ErrorCode = "index_out_of_range"
	ErrCodeTimeout             ErrorCode = "timeout"
	ErrCodeProtocol            ErrorCode = "protocol"
	ErrCodeDecoding            ErrorCode = "decoding"
)

// CardError represents a structured error from the card package
type CardError struct {

	// code is the card error code
	code ErrorCode

	// message is a human-readable error message
	message string

	// wrapped is the optional underlying error
	wrapped error
}

func (e *CardError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrapped)
	}
	return e.message
}

func (e *CardError) Code() ErrorCode { return e.code }
func (e *CardError) Unwrap() error   { return e.wrapped }

// StatusError is returned when a card answers a command with a status word other than 0x9000.
// It is always wrapped in a CardError with code ErrCodeProtocol.
type StatusError struct {
	Command string
	SW      uint16
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status word %04X", e.Command, e.SW)
}

// NewHardwareUnavailableError creates an error for a missing or failing PC/SC subsystem.
// Use this when no readers are attached or the driver itself returns an error.
//
// The returned error will have code ErrCodeHardwareUnavailable.
func NewHardwareUnavailableError(msg string) error {
	return &CardError{code: ErrCodeHardwareUnavailable, message: msg}
}

// WrapHardwareUnavailableError wraps a driver error as a hardware error.
//
// The returned error will have code ErrCodeHardwareUnavailable.
func WrapHardwareUnavailableError(err error, msg string) error {
	return &CardError{code: ErrCodeHardwareUnavailable, message: msg, wrapped: err}
}

// NewIndexOutOfRangeError creates an error for a terminal index that is not in the discovered set.
//
// The returned error will have code ErrCodeIndexOutOfRange.
func NewIndexOutOfRangeError(msg string) error {
	return &CardError{code: ErrCodeIndexOutOfRange, message: msg}
}

// NewTimeoutError creates an error for a card that was not inserted in time.
//
// The returned error will have code ErrCodeTimeout.
func NewTimeoutError(msg string) error {
	return &CardError{code: ErrCodeTimeout, message: msg}
}

// NewProtocolError creates an error for a failed command/response exchange.
// Use this for non-success status words and malformed responses.
//
// The returned error will have code ErrCodeProtocol.
func NewProtocolError(msg string) error {
	return &CardError{code: ErrCodeProtocol, message: msg}
}

// WrapProtocolError wraps an exchange failure as a protocol error.
//
// The returned error will have code ErrCodeProtocol.
func WrapProtocolError(err error, msg string) error {
	return &CardError{code: ErrCodeProtocol, message: msg, wrapped: err}
}

// NewDecodingError creates an error for card data that does not match its expected layout
// or cannot be decoded with the requested character set.
//
// The returned error will have code ErrCodeDecoding.
func NewDecodingError(msg string) error {
	return &CardError{code: ErrCodeDecoding, message: msg}
}

// WrapDecodingError wraps a decoding failure.
//
// The returned error will have code ErrCodeDecoding.
func WrapDecodingError(err error, msg string) error {
	return &CardError{code: ErrCodeDecoding, message: msg, wrapped: err}
}
