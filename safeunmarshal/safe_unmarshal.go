// Package safeunmarshal provides utilities for safely unmarshalling JSON data
// received from untrusted peers: size-limited, whitespace tolerant and strict
// about anything that is not exactly one JSON value.
package safeunmarshal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
)

const (
	// DefaultMaxInputSize is the default maximum size for JSON input (10MB)
	DefaultMaxInputSize = 10 * 1024 * 1024
)

// UnmarshalOptions configures the behavior of JSON unmarshalling.
type UnmarshalOptions struct {
	// MaxInputSize is the maximum allowed size for input JSON in bytes.
	// Set to 0 for no limit.
	MaxInputSize int

	// UseNumber decodes numbers held in interface values as json.Number
	// instead of float64, so integers survive exactly.
	UseNumber bool
}

// DefaultOptions returns the default unmarshalling options.
func DefaultOptions() UnmarshalOptions {
	return UnmarshalOptions{
		MaxInputSize: DefaultMaxInputSize,
	}
}

// To unmarshals raw into a value of type T using the default options.
//
// Usage:
//
//	req, err := safeunmarshal.To[Request](line)
//	if errors.Is(err, safeunmarshal.ErrEmptyInput) {
//	    // blank frame
//	}
func To[T any](raw []byte) (T, error) {
	return ToWithOptions[T](raw, DefaultOptions())
}

// ToWithOptions unmarshals raw into a value of type T with custom options.
// Exactly one JSON value is accepted; trailing data is an error.
func ToWithOptions[T any](raw []byte, opts UnmarshalOptions) (T, error) {
	var zero T

	if opts.MaxInputSize > 0 && len(raw) > opts.MaxInputSize {
		return zero, fmt.Errorf("%w: %d bytes, maximum is %d", ErrInputTooLarge, len(raw), opts.MaxInputSize)
	}

	data := bytes.TrimSpace(raw)
	if len(data) == 0 {
		return zero, ErrEmptyInput
	}

	valueType := reflect.TypeOf((*T)(nil)).Elem()
	isArray := valueType.Kind() == reflect.Array || valueType.Kind() == reflect.Slice
	if isArray && valueType.Elem().Kind() != reflect.Uint8 && !IsJSONArray(data) {
		return zero, fmt.Errorf("%w: got %.64s", ErrExpectedJSONArray, data)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	if opts.UseNumber {
		dec.UseNumber()
	}

	var out T
	if err := dec.Decode(&out); err != nil {
		return zero, fmt.Errorf("failed to parse JSON: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return zero, fmt.Errorf("failed to parse JSON: %w", ErrTrailingData)
	}
	return out, nil
}

// IsJSONArray checks if the input byte slice represents a JSON array.
//
// Only the first non-whitespace character is inspected; the rest of the
// structure is not validated.
func IsJSONArray(data []byte) bool {
	for _, b := range data {
		if b == ' ' || b == '\t' || b == '\n' || b == '\r' {
			continue
		}
		return b == '['
	}
	return false
}
