// Package finance defines the financial-data collaborator consumed by the
// tool layer: the record types returned to clients, the Provider interface
// and the normalization rules shared by every provider implementation.
package finance

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	// ErrNotFound is returned when the upstream provider has no data for a ticker.
	ErrNotFound = errors.New("no data found for ticker")

	// ErrUpstream is returned when the upstream provider fails or answers with
	// something that cannot be decoded.
	ErrUpstream = errors.New("upstream provider error")

	// ErrInvalidInput is returned for inputs the provider refuses before any I/O.
	ErrInvalidInput = errors.New("invalid input")
)

// Provider is the upstream data source. Implementations must be safe for
// concurrent use.
type Provider interface {
	Quote(ctx context.Context, ticker string) (*Quote, error)
	Historical(ctx context.Context, ticker, rng, interval string) (*History, error)
	News(ctx context.Context, ticker string, limit int) (*News, error)
	Compare(ctx context.Context, tickers []string) (*Comparison, error)
}

// Quote is the current market snapshot for one ticker.
type Quote struct {
	Ticker        string   `json:"ticker"`
	Price         float64  `json:"price"`
	Change        float64  `json:"change"`
	ChangePercent float64  `json:"changePercent"`
	Volume        int64    `json:"volume"`
	Currency      string   `json:"currency,omitempty"`
	MarketCap     *float64 `json:"marketCap,omitempty"`
	PE            *float64 `json:"pe,omitempty"`
	High52Week    *float64 `json:"high52Week,omitempty"`
	Low52Week     *float64 `json:"low52Week,omitempty"`
	Open          *float64 `json:"open,omitempty"`
	PreviousClose *float64 `json:"previousClose,omitempty"`
	Timestamp     string   `json:"timestamp"`
}

// Bar is one OHLCV data point.
type Bar struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// History is a historical OHLCV series.
type History struct {
	Ticker   string `json:"ticker"`
	Range    string `json:"range"`
	Interval string `json:"interval"`
	Data     []Bar  `json:"data"`
}

// NewsItem is a single headline.
type NewsItem struct {
	Title       string `json:"title"`
	Summary     string `json:"summary,omitempty"`
	URL         string `json:"url"`
	PublishedAt string `json:"publishedAt"`
	Source      string `json:"source"`
}

// News is the headline feed for one ticker.
type News struct {
	Ticker string     `json:"ticker"`
	News   []NewsItem `json:"news"`
	Limit  int        `json:"limit"`
}

// ComparisonItem is the per-ticker summary inside a Comparison.
type ComparisonItem struct {
	Ticker        string   `json:"ticker"`
	Price         float64  `json:"price"`
	Change        float64  `json:"change"`
	ChangePercent float64  `json:"changePercent"`
	Volume        int64    `json:"volume"`
	MarketCap     *float64 `json:"marketCap,omitempty"`
	PE            *float64 `json:"pe,omitempty"`
}

// Comparison is a side-by-side view of several tickers, in request order.
type Comparison struct {
	Tickers   []string         `json:"tickers"`
	Data      []ComparisonItem `json:"data"`
	Timestamp string           `json:"timestamp"`
}

const (
	DefaultRange    = "1mo"
	DefaultInterval = "1d"
	DefaultNewsSize = 5

	MinNewsLimit      = 1
	MaxNewsLimit      = 50
	MinCompareTickers = 2
	MaxCompareTickers = 10
)

// Ranges lists the supported history ranges in display order.
var Ranges = []string{"1d", "5d", "1mo", "3mo", "6mo", "1y", "2y", "5y", "10y", "ytd", "max"}

// Intervals lists the supported history intervals in display order.
var Intervals = []string{"1m", "2m", "5m", "15m", "30m", "60m", "90m", "1h", "1d", "5d", "1wk", "1mo", "3mo"}

// NormalizeTicker trims and upper-cases a ticker symbol.
func NormalizeTicker(ticker string) string {
	// A Caser carries state and must not be shared between goroutines.
	return cases.Upper(language.Und).String(strings.TrimSpace(ticker))
}

// NormalizeRange returns rng if it is supported and DefaultRange otherwise.
func NormalizeRange(rng string) string {
	if slices.Contains(Ranges, rng) {
		return rng
	}
	return DefaultRange
}

// NormalizeInterval returns interval if it is supported and DefaultInterval otherwise.
func NormalizeInterval(interval string) string {
	if slices.Contains(Intervals, interval) {
		return interval
	}
	return DefaultInterval
}

// FormatTime renders timestamps the way every record carries them.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// IsIntraday reports whether bars at this interval are finer than a day.
func IsIntraday(interval string) bool {
	return strings.HasSuffix(interval, "m") || strings.HasSuffix(interval, "h")
}
