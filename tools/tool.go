// Package tools holds the tool registry, argument validation and the
// dispatcher that executes tool calls against a finance.Provider.
//
// # Basic Usage
//
// Build the registry once at start-up and hand each session a dispatcher:
//
//	registry, err := tools.NewRegistry(yahoo.New())
//	if err != nil {
//	    // handle error
//	}
//	dispatcher := tools.NewDispatcher(registry, logger)
//	result, err := dispatcher.Invoke(ctx, tools.GetQuote, map[string]any{"ticker": "aapl"})
//
// # Typed Tools
//
// Every tool is a TypedTool: its arguments are validated against its
// Descriptor and then decoded into a Go struct before the handler runs.
//
//	tool, err := tools.NewTool(descriptor, func(ctx context.Context, in QuoteArgs) (*finance.Quote, error) {
//	    return provider.Quote(ctx, in.Ticker)
//	})
//
// # Error Handling
//
// Every error returned by Dispatcher.Invoke is a *Error whose Kind and Code
// the transport layer reports as-is.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Tool defines the interface that all tools must implement
type Tool interface {
	// Descriptor returns the tool's published name, description and parameters.
	Descriptor() Descriptor

	// OutputSchema describes the record Execute produces.
	OutputSchema() *jsonschema.Schema

	// Annotations returns protocol hints for clients, or nil.
	Annotations() *sdk.ToolAnnotations

	// Execute runs the tool with already validated parameters.
	Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error)
}

// ToolResult is the record a tool produced.
type ToolResult struct {
	Output any
}

const (
	maxToolNameLength = 64
)

// CheckDescriptor rejects descriptors that cannot be published.
func CheckDescriptor(d Descriptor) error {
	if d.Name == "" {
		return fmt.Errorf("tool descriptor must include a non-empty name")
	}

	if len(d.Name) > maxToolNameLength {
		return fmt.Errorf("tool name must not exceed 64 characters")
	}

	for _, char := range d.Name {
		if (char >= 'a' && char <= 'z') ||
			(char >= 'A' && char <= 'Z') ||
			(char >= '0' && char <= '9') ||
			char == '_' || char == '-' {
			continue
		}
		return fmt.Errorf("tool name must contain only alphanumeric characters, underscores, or hyphens")
	}

	if d.Description == "" {
		return fmt.Errorf("tool %s description cannot be empty", d.Name)
	}

	seen := make(map[string]bool, len(d.Parameters))
	for _, p := range d.Parameters {
		if p.Name == "" {
			return fmt.Errorf("tool %s has a parameter without a name", d.Name)
		}
		if seen[p.Name] {
			return fmt.Errorf("tool %s declares parameter %s twice", d.Name, p.Name)
		}
		seen[p.Name] = true
	}

	return nil
}
