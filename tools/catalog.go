package tools

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/mhpenta/yahoo-finance-mcp/finance"
)

// ParamType is the wire type of a tool argument.
type ParamType string

const (
	ParamString      ParamType = "string"
	ParamInteger     ParamType = "integer"
	ParamStringArray ParamType = "string_array"
)

// Parameter declares one argument of a tool.
type Parameter struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
	Default     any
	Enum        []string
	Min, Max    *int // integer bounds, inclusive
	MinItems    int  // string_array only
	MaxItems    int  // string_array only, 0 means unbounded
}

// Descriptor is the published metadata of a tool.
type Descriptor struct {
	Name        string
	Description string
	Parameters  []Parameter
}

// Schema renders the descriptor's parameters as a JSON Schema object.
func (d Descriptor) Schema() *jsonschema.Schema {
	s := &jsonschema.Schema{
		Type:       "object",
		Properties: make(map[string]*jsonschema.Schema, len(d.Parameters)),
	}
	for _, p := range d.Parameters {
		s.Properties[p.Name] = p.schema()
		if p.Required {
			s.Required = append(s.Required, p.Name)
		}
	}
	return s
}

func (p Parameter) schema() *jsonschema.Schema {
	s := &jsonschema.Schema{Description: p.Description}
	switch p.Type {
	case ParamString:
		s.Type = "string"
		for _, v := range p.Enum {
			s.Enum = append(s.Enum, v)
		}
	case ParamInteger:
		s.Type = "integer"
		if p.Min != nil {
			s.Minimum = ptr(float64(*p.Min))
		}
		if p.Max != nil {
			s.Maximum = ptr(float64(*p.Max))
		}
	case ParamStringArray:
		s.Type = "array"
		s.Items = &jsonschema.Schema{Type: "string"}
		if p.MinItems > 0 {
			s.MinItems = ptr(p.MinItems)
		}
		if p.MaxItems > 0 {
			s.MaxItems = ptr(p.MaxItems)
		}
	}
	if p.Default != nil {
		if raw, err := json.Marshal(p.Default); err == nil {
			s.Default = raw
		}
	}
	return s
}

// Tool names.
const (
	GetQuote          = "get_quote"
	GetHistoricalData = "get_historical_data"
	GetNews           = "get_news"
	CompareStocks     = "compare_stocks"
)

// Catalog returns the descriptors of every tool the server publishes, in
// listing order.
func Catalog() []Descriptor {
	ticker := func(description string) Parameter {
		return Parameter{Name: "ticker", Type: ParamString, Description: description, Required: true}
	}

	return []Descriptor{
		{
			Name:        GetQuote,
			Description: "Get current stock price and market data for a ticker symbol",
			Parameters: []Parameter{
				ticker("Stock ticker symbol (e.g., AAPL, GOOGL, MSFT)"),
			},
		},
		{
			Name:        GetHistoricalData,
			Description: "Get historical OHLCV data for a stock over a specified time range",
			Parameters: []Parameter{
				ticker("Stock ticker symbol"),
				{
					Name:        "range",
					Type:        ParamString,
					Description: "Time range for historical data",
					Default:     finance.DefaultRange,
					Enum:        finance.Ranges,
				},
				{
					Name:        "interval",
					Type:        ParamString,
					Description: "Data interval",
					Default:     finance.DefaultInterval,
					Enum:        finance.Intervals,
				},
			},
		},
		{
			Name:        GetNews,
			Description: "Get latest news headlines for a stock ticker",
			Parameters: []Parameter{
				ticker("Stock ticker symbol"),
				{
					Name:        "limit",
					Type:        ParamInteger,
					Description: fmt.Sprintf("Number of news articles to return (%d-%d)", finance.MinNewsLimit, finance.MaxNewsLimit),
					Default:     finance.DefaultNewsSize,
					Min:         ptr(finance.MinNewsLimit),
					Max:         ptr(finance.MaxNewsLimit),
				},
			},
		},
		{
			Name:        CompareStocks,
			Description: "Compare multiple stocks side by side with their current market data",
			Parameters: []Parameter{
				{
					Name: "tickers",
					Type: ParamStringArray,
					Description: fmt.Sprintf("Array of stock ticker symbols to compare (%d-%d tickers)",
						finance.MinCompareTickers, finance.MaxCompareTickers),
					Required: true,
					MinItems: finance.MinCompareTickers,
					MaxItems: finance.MaxCompareTickers,
				},
			},
		},
	}
}

func ptr[T any](v T) *T {
	return &v
}
