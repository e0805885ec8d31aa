package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mhpenta/yahoo-finance-mcp/finance"
	"github.com/mhpenta/yahoo-finance-mcp/tools"
)

// countingProvider answers every lookup with a synthetic record and counts
// collaborator calls. The ticker GHOST is unknown.
type countingProvider struct {
	calls       atomic.Int32
	inflight    atomic.Int32
	maxInflight atomic.Int32
	delay       time.Duration
}

func (p *countingProvider) Quote(ctx context.Context, ticker string) (*finance.Quote, error) {
	p.calls.Add(1)
	n := p.inflight.Add(1)
	defer p.inflight.Add(-1)
	for {
		peak := p.maxInflight.Load()
		if n <= peak || p.maxInflight.CompareAndSwap(peak, n) {
			break
		}
	}
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	symbol := finance.NormalizeTicker(ticker)
	if symbol == "GHOST" {
		return nil, fmt.Errorf("failed to fetch quote for %s: %w", symbol, finance.ErrNotFound)
	}
	return &finance.Quote{Ticker: symbol, Price: 100, Timestamp: "2026-01-02T15:04:05Z"}, nil
}

func (p *countingProvider) Historical(ctx context.Context, ticker, rng, interval string) (*finance.History, error) {
	p.calls.Add(1)
	return &finance.History{
		Ticker:   finance.NormalizeTicker(ticker),
		Range:    finance.NormalizeRange(rng),
		Interval: finance.NormalizeInterval(interval),
		Data:     []finance.Bar{{Date: "2026-01-02", Close: 1}},
	}, nil
}

func (p *countingProvider) News(ctx context.Context, ticker string, limit int) (*finance.News, error) {
	p.calls.Add(1)
	return &finance.News{Ticker: finance.NormalizeTicker(ticker), News: []finance.NewsItem{}, Limit: limit}, nil
}

func (p *countingProvider) Compare(ctx context.Context, tickers []string) (*finance.Comparison, error) {
	return finance.CompareQuotes(ctx, tickers, p.Quote)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, p finance.Provider, idle time.Duration) *Server {
	t.Helper()
	registry, err := tools.NewRegistry(p)
	require.NoError(t, err)
	return NewServer(ServerConfig{
		Name:        "test-server",
		Version:     "1.0.0",
		Registry:    registry,
		Logger:      discardLogger(),
		IdleTimeout: idle,
	})
}

// wireResponse is a response as a client sees it.
type wireResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

func toWire(t *testing.T, v any) wireResponse {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	var w wireResponse
	require.NoError(t, json.Unmarshal(data, &w))
	return w
}

// toolText extracts the text block of a tools/call result.
func toolText(t *testing.T, result json.RawMessage) string {
	t.Helper()
	var r struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	require.NoError(t, json.Unmarshal(result, &r))
	require.Len(t, r.Content, 1)
	require.Equal(t, "text", r.Content[0].Type)
	return r.Content[0].Text
}

func quoteTicker(t *testing.T, result json.RawMessage) string {
	t.Helper()
	var q finance.Quote
	require.NoError(t, json.Unmarshal([]byte(toolText(t, result)), &q))
	return q.Ticker
}

func request(t *testing.T, frame string) *JSONRPCRequest {
	t.Helper()
	msgs, batch, err := DecodeFrame([]byte(frame))
	require.NoError(t, err)
	require.False(t, batch)
	require.Nil(t, msgs[0].Err)
	return msgs[0].Request
}

const (
	initializeFrame = `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","clientInfo":{"name":"test-client","version":"1.0"}}}`
	quoteFrame      = `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"get_quote","arguments":{"ticker":"aapl"}}}`
)
