package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mhpenta/yahoo-finance-mcp/finance"
)

// Dispatcher validates tool calls and runs them against the registry. It
// holds no mutable state and is safe for concurrent use.
type Dispatcher struct {
	registry *Registry
	logger   *slog.Logger
}

func NewDispatcher(registry *Registry, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		registry: registry,
		logger:   logger,
	}
}

// Registry returns the registry the dispatcher serves.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Invoke runs the named tool. Every returned error is a *Error.
func (d *Dispatcher) Invoke(ctx context.Context, name string, args map[string]any) (*sdk.CallToolResult, error) {
	tool, ok := d.registry.Lookup(name)
	if !ok {
		return nil, NewUnknownOperationError(name)
	}

	normalized, err := Validate(tool.Descriptor(), args)
	if err != nil {
		d.logger.Debug("tool arguments rejected", "tool", name, "error", err)
		return nil, err
	}

	params, err := json.Marshal(normalized)
	if err != nil {
		return nil, NewInvalidArgumentError("", "failed to encode arguments: %v", err)
	}

	start := time.Now()
	result, err := d.execute(ctx, tool, params)
	duration := time.Since(start)
	if err != nil {
		d.logger.Warn("tool call failed",
			"tool", name,
			"duration_ms", duration.Milliseconds(),
			"error", err)
		return nil, classify(err)
	}

	d.logger.Debug("tool call completed",
		"tool", name,
		"duration_ms", duration.Milliseconds())

	return &sdk.CallToolResult{
		Content:           []sdk.Content{&sdk.TextContent{Text: MarshalOutput(d.logger, result.Output)}},
		StructuredContent: result.Output,
	}, nil
}

// execute converts a panicking collaborator into an ordinary error.
func (d *Dispatcher) execute(ctx context.Context, tool Tool, params json.RawMessage) (result *ToolResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("tool panicked", "tool", tool.Descriptor().Name, "panic", r)
			result, err = nil, fmt.Errorf("tool %s failed unexpectedly: %v", tool.Descriptor().Name, r)
		}
	}()
	return tool.Execute(ctx, params)
}

func classify(err error) *Error {
	if te, ok := AsError(err); ok {
		return te
	}
	if errors.Is(err, finance.ErrInvalidInput) {
		e := NewError(KindInvalidArgument, CodeInvalidParams, err.Error())
		e.Cause = err
		return e
	}
	return NewUpstreamError(err)
}
