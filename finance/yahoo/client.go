// Package yahoo implements finance.Provider on top of the public Yahoo
// Finance chart and search endpoints.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mhpenta/yahoo-finance-mcp/finance"
)

const (
	DefaultBaseURL = "https://query1.finance.yahoo.com"
	DefaultTimeout = 30 * time.Second

	// Yahoo rejects requests that carry Go's default User-Agent.
	defaultUserAgent = "Mozilla/5.0 (compatible; yahoo-finance-mcp/0.2)"

	maxResponseSize = 8 * 1024 * 1024
)

// Compile-time verification that Client implements finance.Provider.
var _ finance.Provider = (*Client)(nil)

// Client talks to Yahoo Finance over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another host (tests, proxies).
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient = &http.Client{Timeout: d}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a Yahoo Finance client.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		userAgent:  defaultUserAgent,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "yahoo")
	return c
}

// Quote returns the current market snapshot for ticker.
func (c *Client) Quote(ctx context.Context, ticker string) (*finance.Quote, error) {
	symbol := finance.NormalizeTicker(ticker)
	if symbol == "" {
		return nil, fmt.Errorf("%w: ticker is empty", finance.ErrInvalidInput)
	}

	chart, err := c.chart(ctx, symbol, "1d", "1d")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch quote for %s: %w", symbol, err)
	}
	return chart.quote(symbol), nil
}

// Historical returns OHLCV bars for ticker. Unsupported ranges fall back to
// finance.DefaultRange and unsupported intervals to finance.DefaultInterval.
func (c *Client) Historical(ctx context.Context, ticker, rng, interval string) (*finance.History, error) {
	symbol := finance.NormalizeTicker(ticker)
	if symbol == "" {
		return nil, fmt.Errorf("%w: ticker is empty", finance.ErrInvalidInput)
	}
	rng = finance.NormalizeRange(rng)
	interval = finance.NormalizeInterval(interval)

	chart, err := c.chart(ctx, symbol, rng, interval)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch historical data for %s: %w", symbol, err)
	}

	bars := chart.bars(interval)
	if len(bars) == 0 {
		return nil, fmt.Errorf("failed to fetch historical data for %s: %w", symbol, finance.ErrNotFound)
	}

	return &finance.History{
		Ticker:   symbol,
		Range:    rng,
		Interval: interval,
		Data:     bars,
	}, nil
}

// News returns at most limit headlines for ticker.
func (c *Client) News(ctx context.Context, ticker string, limit int) (*finance.News, error) {
	symbol := finance.NormalizeTicker(ticker)
	if symbol == "" {
		return nil, fmt.Errorf("%w: ticker is empty", finance.ErrInvalidInput)
	}
	if limit < finance.MinNewsLimit || limit > finance.MaxNewsLimit {
		return nil, fmt.Errorf("%w: limit must be between %d and %d, got %d",
			finance.ErrInvalidInput, finance.MinNewsLimit, finance.MaxNewsLimit, limit)
	}

	q := url.Values{}
	q.Set("q", symbol)
	q.Set("quotesCount", "0")
	q.Set("newsCount", strconv.Itoa(limit))

	var resp searchResponse
	if err := c.get(ctx, "/v1/finance/search", q, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch news for %s: %w", symbol, err)
	}

	items := make([]finance.NewsItem, 0, min(limit, len(resp.News)))
	for _, n := range resp.News {
		if len(items) == limit {
			break
		}
		items = append(items, finance.NewsItem{
			Title:       n.Title,
			URL:         n.Link,
			PublishedAt: finance.FormatTime(time.Unix(n.ProviderPublishTime, 0)),
			Source:      n.Publisher,
		})
	}

	return &finance.News{
		Ticker: symbol,
		News:   items,
		Limit:  limit,
	}, nil
}

// Compare fetches quotes for every ticker concurrently.
func (c *Client) Compare(ctx context.Context, tickers []string) (*finance.Comparison, error) {
	cmp, err := finance.CompareQuotes(ctx, tickers, c.Quote)
	if err != nil {
		return nil, fmt.Errorf("failed to compare tickers: %w", err)
	}
	return cmp, nil
}

func (c *Client) chart(ctx context.Context, symbol, rng, interval string) (*chartResult, error) {
	q := url.Values{}
	q.Set("range", rng)
	q.Set("interval", interval)
	q.Set("includePrePost", "false")

	var resp chartResponse
	err := c.get(ctx, "/v8/finance/chart/"+url.PathEscape(symbol), q, &resp)
	if resp.Chart.Error != nil {
		if resp.Chart.Error.Code == "Not Found" {
			return nil, fmt.Errorf("%w: %s", finance.ErrNotFound, resp.Chart.Error.Description)
		}
		return nil, fmt.Errorf("%w: %s: %s", finance.ErrUpstream, resp.Chart.Error.Code, resp.Chart.Error.Description)
	}
	if err != nil {
		return nil, err
	}
	if len(resp.Chart.Result) == 0 {
		return nil, finance.ErrNotFound
	}
	return &resp.Chart.Result[0], nil
}

// get issues a GET request and decodes the JSON body into out. The body is
// decoded even on non-200 statuses since Yahoo reports errors in-band.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", finance.ErrUpstream, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", finance.ErrUpstream, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("upstream request",
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", finance.ErrUpstream, err)
	}
	decodeErr := json.Unmarshal(body, out)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return finance.ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: unexpected status %d", finance.ErrUpstream, resp.StatusCode)
	case decodeErr != nil:
		return fmt.Errorf("%w: decode response: %v", finance.ErrUpstream, decodeErr)
	}
	return nil
}
