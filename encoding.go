package kvsql

import (
	"encoding/json"
)

// Marshaler interface specifies encoding to byte array and back to the object.
type Marshaler interface {
	// Encodes any object to byte array.
	Marshal(v any) ([]byte, error)
	// Decodes byte array back to its Object type.
	Unmarshal(data []byte, v any) error
}

type defaultMarshaler struct{}

// NewMarshaler returns the default marshaler which uses the golang's json package.
func NewMarshaler() Marshaler {
	return &defaultMarshaler{}
}

// DefaultMarshaler is the JSON marshaler used across kvsql unless overridden.
var DefaultMarshaler = NewMarshaler()

// Encodes any object to a byte array.
func (m defaultMarshaler) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Decodes a byte array back to its Object type.
func (m defaultMarshaler) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// encodeValue converts a JSON-representable value to its persisted text form.
// Failures are reported as SerializationError.
func encodeValue(m Marshaler, v any) (string, error) {
	ba, err := m.Marshal(v)
	if err != nil {
		return "", Error{Code: SerializationError, Err: err}
	}
	return string(ba), nil
}

// decodeValue converts persisted text back into target. Failures are reported
// as SerializationError.
func decodeValue(m Marshaler, data string, target any) error {
	if err := m.Unmarshal([]byte(data), target); err != nil {
		return Error{Code: SerializationError, Err: err}
	}
	return nil
}
