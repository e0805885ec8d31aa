// Package infer derives JSON schemas from Go types.
//
// It is a thin wrapper around github.com/google/jsonschema-go used by the tool
// layer to advertise output schemas for the records each tool returns.
package infer

import (
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// FromType generates the JSON schema for T.
//
// Example:
//
//	schema, err := infer.FromType[finance.Quote]()
func FromType[T any]() (*jsonschema.Schema, error) {
	s, err := jsonschema.For[T](nil)
	if err != nil {
		var zero T
		return nil, fmt.Errorf("generating schema for %T: %w", zero, err)
	}
	return s, nil
}
