package tools

import (
	"context"
	"fmt"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mhpenta/yahoo-finance-mcp/finance"
)

// Argument records the dispatcher decodes validated arguments into.
type (
	QuoteArgs struct {
		Ticker string `json:"ticker"`
	}

	HistoricalArgs struct {
		Ticker   string `json:"ticker"`
		Range    string `json:"range"`
		Interval string `json:"interval"`
	}

	NewsArgs struct {
		Ticker string `json:"ticker"`
		Limit  int    `json:"limit"`
	}

	CompareArgs struct {
		Tickers []string `json:"tickers"`
	}
)

// Registry is the immutable set of tools published by the server. It is
// built once and shared read-only by every session.
type Registry struct {
	tools []Tool
	index map[string]Tool
}

// NewRegistry binds every catalog entry to provider.
func NewRegistry(provider finance.Provider) (*Registry, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider cannot be nil")
	}

	readOnly := &sdk.ToolAnnotations{ReadOnlyHint: true, OpenWorldHint: ptr(true)}
	catalog := Catalog()
	byName := make(map[string]Descriptor, len(catalog))
	for _, d := range catalog {
		byName[d.Name] = d
	}

	builders := []func() (Tool, error){
		func() (Tool, error) {
			return NewTool(byName[GetQuote], func(ctx context.Context, in QuoteArgs) (*finance.Quote, error) {
				return provider.Quote(ctx, in.Ticker)
			}, WithAnnotations(readOnly))
		},
		func() (Tool, error) {
			return NewTool(byName[GetHistoricalData], func(ctx context.Context, in HistoricalArgs) (*finance.History, error) {
				return provider.Historical(ctx, in.Ticker, in.Range, in.Interval)
			}, WithAnnotations(readOnly))
		},
		func() (Tool, error) {
			return NewTool(byName[GetNews], func(ctx context.Context, in NewsArgs) (*finance.News, error) {
				return provider.News(ctx, in.Ticker, in.Limit)
			}, WithAnnotations(readOnly))
		},
		func() (Tool, error) {
			return NewTool(byName[CompareStocks], func(ctx context.Context, in CompareArgs) (*finance.Comparison, error) {
				return provider.Compare(ctx, in.Tickers)
			}, WithAnnotations(readOnly))
		},
	}

	tools := make([]Tool, 0, len(builders))
	for _, build := range builders {
		t, err := build()
		if err != nil {
			return nil, fmt.Errorf("failed to build tool registry: %w", err)
		}
		tools = append(tools, t)
	}

	return newRegistry(tools)
}

func newRegistry(tools []Tool) (*Registry, error) {
	r := &Registry{
		tools: tools,
		index: make(map[string]Tool, len(tools)),
	}
	for _, t := range tools {
		name := t.Descriptor().Name
		if _, dup := r.index[name]; dup {
			return nil, fmt.Errorf("duplicate tool name: %s", name)
		}
		r.index[name] = t
	}
	return r, nil
}

// List returns the descriptors in publication order.
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, len(r.tools))
	for i, t := range r.tools {
		out[i] = t.Descriptor()
	}
	return out
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	t, ok := r.index[name]
	return t, ok
}

// SDKTools renders the registry as protocol tool definitions.
func (r *Registry) SDKTools() []*sdk.Tool {
	out := make([]*sdk.Tool, len(r.tools))
	for i, t := range r.tools {
		d := t.Descriptor()
		out[i] = &sdk.Tool{
			Name:         d.Name,
			Description:  d.Description,
			InputSchema:  d.Schema(),
			OutputSchema: t.OutputSchema(),
			Annotations:  t.Annotations(),
		}
	}
	return out
}
