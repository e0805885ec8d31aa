package safeunmarshal

import "errors"

var (
	// ErrExpectedJSONArray is returned when the target is an array or slice type
	// but the input is not a JSON array
	ErrExpectedJSONArray = errors.New("expected JSON array for array type")

	// ErrEmptyInput is returned for input that is empty or only whitespace
	ErrEmptyInput = errors.New("empty input")

	// ErrInputTooLarge is returned when the input exceeds UnmarshalOptions.MaxInputSize
	ErrInputTooLarge = errors.New("input exceeds maximum size")

	// ErrTrailingData is returned when more than one JSON value is present
	ErrTrailingData = errors.New("unexpected data after JSON value")
)
