package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mhpenta/yahoo-finance-mcp/infer"
	"github.com/mhpenta/yahoo-finance-mcp/safeunmarshal"
)

type TypedTool[In, Out any] struct {
	descriptor  Descriptor
	output      *jsonschema.Schema
	annotations *sdk.ToolAnnotations
	handler     func(context.Context, In) (*Out, error)
}

func (t *TypedTool[In, Out]) Descriptor() Descriptor {
	return t.descriptor
}

func (t *TypedTool[In, Out]) OutputSchema() *jsonschema.Schema {
	return t.output
}

func (t *TypedTool[In, Out]) Annotations() *sdk.ToolAnnotations {
	return t.annotations
}

func (t *TypedTool[In, Out]) Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error) {
	var input In
	if len(params) > 0 {
		parsedInput, err := safeunmarshal.To[In](params)
		if err != nil {
			return nil, NewInvalidArgumentError("", "failed to parse parameters: %v", err)
		}
		input = parsedInput
	}
	result, err := t.handler(ctx, input)
	if err != nil {
		return nil, err
	}
	return &ToolResult{Output: result}, nil
}

// ToolOption for functional configuration
type ToolOption func(*toolConfig)

type toolConfig struct {
	annotations *sdk.ToolAnnotations
}

// WithAnnotations attaches protocol hints published with the tool.
func WithAnnotations(annotations *sdk.ToolAnnotations) ToolOption {
	return func(c *toolConfig) {
		c.annotations = annotations
	}
}

// NewTool binds a handler to a descriptor, inferring the output schema from
// Out. Out must be a struct type; the handler returns it by pointer.
//
// Example:
//
//	tool, err := tools.NewTool(
//	    descriptor,
//	    func(ctx context.Context, in QuoteArgs) (*finance.Quote, error) {
//	        return provider.Quote(ctx, in.Ticker)
//	    },
//	)
func NewTool[In, Out any](
	descriptor Descriptor,
	handler func(context.Context, In) (*Out, error),
	opts ...ToolOption,
) (Tool, error) {
	if err := CheckDescriptor(descriptor); err != nil {
		return nil, err
	}

	outputSchema, err := infer.FromType[Out]()
	if err != nil {
		return nil, fmt.Errorf("failed to generate output schema for %s: %w", descriptor.Name, err)
	}

	var cfg toolConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	return &TypedTool[In, Out]{
		descriptor:  descriptor,
		output:      outputSchema,
		annotations: cfg.annotations,
		handler:     handler,
	}, nil
}
