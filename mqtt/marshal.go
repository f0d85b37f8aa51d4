package mqtt

import (
	"encoding/json"
)

// ValueMarshaler encodes a T as the payload of an MQTT message.
type ValueMarshaler[T any] func(v T) ([]byte, error)

// ValueUnmarshaler decodes the payload of an MQTT message into a T.
type ValueUnmarshaler[T any] func([]byte) (T, error)

var (
	StringMarshaler   = TextMarshaler[string]()
	StringUnmarshaler = TextUnmarshaler[string]()
)

// TextMarshaler returns a ValueMarshaler writing string-kinded values verbatim.
func TextMarshaler[T ~string]() ValueMarshaler[T] {
	return func(v T) ([]byte, error) {
		return []byte(v), nil
	}
}

// TextUnmarshaler returns a ValueUnmarshaler converting the payload to T without validation.
func TextUnmarshaler[T ~string]() ValueUnmarshaler[T] {
	return func(payload []byte) (T, error) {
		return T(payload), nil
	}
}

// JsonValueMarshaler returns a ValueMarshaler encoding T as json.
func JsonValueMarshaler[T any]() ValueMarshaler[T] {
	return func(v T) ([]byte, error) {
		return json.Marshal(v)
	}
}

// JsonValueUnmarshaler returns a ValueUnmarshaler decoding json payloads into T.
func JsonValueUnmarshaler[T any]() ValueUnmarshaler[T] {
	return func(payload []byte) (T, error) {
		var v T
		return v, json.Unmarshal(payload, &v)
	}
}
