package kvsql

import "fmt"

// ErrorCode classifies kvsql failures.
type ErrorCode int

const (
	Unknown ErrorCode = iota
	// ClosedError signifies an operation on a closed store or on a
	// released/committed (inert) transaction.
	ClosedError
	// SchemaError signifies backing table creation or verification failure
	// during store open.
	SchemaError
	// StatementError signifies a parameterized statement failure at the
	// backing engine; Err carries the engine's native failure.
	StatementError
	// SerializationError signifies a value that could not be encoded to or
	// decoded from its JSON text representation.
	SerializationError
)

// kvsql custom error.
type Error struct {
	Code     ErrorCode
	Err      error
	UserData any
}

func (e Error) Error() string {
	return fmt.Errorf("error code: %d, user data: %v, details: %w", e.Code, e.UserData, e.Err).Error()
}

// Unwrap exposes the wrapped native failure for errors.Is/errors.As.
func (e Error) Unwrap() error {
	return e.Err
}

// CodeOf extracts the ErrorCode of an error, or Unknown if it is not a kvsql Error.
func CodeOf(err error) ErrorCode {
	if e, ok := err.(Error); ok {
		return e.Code
	}
	return Unknown
}

// IsClosedError reports whether err carries the ClosedError code.
func IsClosedError(err error) bool {
	return CodeOf(err) == ClosedError
}
