package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhpenta/yahoo-finance-mcp/tools"
)

func TestSession_Lifecycle(t *testing.T) {
	server := newTestServer(t, &countingProvider{}, 0)
	s := server.NewSession("s1")
	assert.Equal(t, StateUninitialized, s.State())
	assert.Equal(t, "s1", s.ID())
	assert.False(t, s.CreatedAt().IsZero())

	resp, err := s.Handle(context.Background(), request(t, `{"jsonrpc":"2.0","id":1,"method":"ping"}`))
	require.NoError(t, err)
	assert.Nil(t, resp.Error)
	assert.Equal(t, StateActive, s.State())

	var closed atomic.Int32
	s.OnClose(func(*Session) { closed.Add(1) })
	s.Close()
	s.Close()
	assert.Equal(t, StateClosed, s.State())
	assert.EqualValues(t, 1, closed.Load())

	// Callbacks registered after close still run, once.
	s.OnClose(func(*Session) { closed.Add(1) })
	assert.EqualValues(t, 2, closed.Load())
}

func TestSession_RejectsAfterClose(t *testing.T) {
	p := &countingProvider{}
	s := newTestServer(t, p, 0).NewSession("s1")
	s.Close()

	resp, err := s.Handle(context.Background(), request(t, quoteFrame))
	require.ErrorIs(t, err, ErrSessionClosed)
	require.NotNil(t, resp)
	require.NotNil(t, resp.Error)
	assert.Equal(t, tools.CodeSessionNotFound, resp.Error.Code)
	assert.Equal(t, tools.KindSessionNotFound, resp.Error.Data.Kind)
	assert.JSONEq(t, `2`, string(resp.ID))
	assert.Zero(t, p.calls.Load())

	_, err = s.HandleAll(context.Background(), []Incoming{{Request: request(t, quoteFrame)}})
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestSession_Initialize(t *testing.T) {
	s := newTestServer(t, &countingProvider{}, 0).NewSession("s1")

	tests := map[string]string{
		"2025-03-26": "2025-03-26",
		"2024-11-05": "2024-11-05",
		"1999-01-01": "2025-06-18",
		"":           "2025-06-18",
	}
	for requested, want := range tests {
		t.Run(requested, func(t *testing.T) {
			frame := fmt.Sprintf(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":%q}}`, requested)
			resp, err := s.Handle(context.Background(), request(t, frame))
			require.NoError(t, err)

			var result struct {
				ProtocolVersion string `json:"protocolVersion"`
				Capabilities    struct {
					Tools *struct{} `json:"tools"`
				} `json:"capabilities"`
				ServerInfo struct {
					Name    string `json:"name"`
					Version string `json:"version"`
				} `json:"serverInfo"`
			}
			require.NoError(t, json.Unmarshal(toWire(t, resp).Result, &result))
			assert.Equal(t, want, result.ProtocolVersion)
			assert.NotNil(t, result.Capabilities.Tools)
			assert.Equal(t, "test-server", result.ServerInfo.Name)
			assert.Equal(t, "1.0.0", result.ServerInfo.Version)
		})
	}
}

func TestSession_ToolsList(t *testing.T) {
	s := newTestServer(t, &countingProvider{}, 0).NewSession("s1")

	resp, err := s.Handle(context.Background(), request(t, `{"jsonrpc":"2.0","id":"list","method":"tools/list"}`))
	require.NoError(t, err)

	var result struct {
		Tools []struct {
			Name        string          `json:"name"`
			InputSchema json.RawMessage `json:"inputSchema"`
		} `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(toWire(t, resp).Result, &result))
	require.Len(t, result.Tools, 4)
	names := []string{result.Tools[0].Name, result.Tools[1].Name, result.Tools[2].Name, result.Tools[3].Name}
	assert.Equal(t, []string{"get_quote", "get_historical_data", "get_news", "compare_stocks"}, names)
	assert.Contains(t, string(result.Tools[0].InputSchema), `"ticker"`)
}

func TestSession_ToolCallForms(t *testing.T) {
	s := newTestServer(t, &countingProvider{}, 0).NewSession("s1")

	for name, frame := range map[string]string{
		"standard": quoteFrame,
		"compact":  `{"jsonrpc":"2.0","id":2,"method":"tools/call","tool":"get_quote","args":{"ticker":"aapl"}}`,
	} {
		t.Run(name, func(t *testing.T) {
			resp, err := s.Handle(context.Background(), request(t, frame))
			require.NoError(t, err)
			w := toWire(t, resp)
			require.Nil(t, w.Error)
			assert.Equal(t, "AAPL", quoteTicker(t, w.Result))
		})
	}
}

func TestSession_Errors(t *testing.T) {
	s := newTestServer(t, &countingProvider{}, 0).NewSession("s1")

	tests := []struct {
		name  string
		frame string
		code  int
		kind  tools.Kind
		field string
	}{
		{
			name:  "unknown method",
			frame: `{"jsonrpc":"2.0","id":1,"method":"resources/list"}`,
			code:  tools.CodeMethodNotFound,
			kind:  tools.KindUnknownOperation,
		},
		{
			name:  "unknown tool",
			frame: `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"get_weather"}}`,
			code:  tools.CodeMethodNotFound,
			kind:  tools.KindUnknownOperation,
		},
		{
			name:  "compare one ticker",
			frame: `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"compare_stocks","arguments":{"tickers":["AAPL"]}}}`,
			code:  tools.CodeInvalidParams,
			kind:  tools.KindInvalidArgument,
			field: "tickers",
		},
		{
			name:  "news limit too large",
			frame: `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"get_news","arguments":{"ticker":"AAPL","limit":51}}}`,
			code:  tools.CodeInvalidParams,
			kind:  tools.KindInvalidArgument,
			field: "limit",
		},
		{
			name:  "unknown ticker",
			frame: `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"get_quote","arguments":{"ticker":"ghost"}}}`,
			code:  tools.CodeUpstreamFailure,
			kind:  tools.KindUpstreamFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := s.Handle(context.Background(), request(t, tt.frame))
			require.NoError(t, err)
			require.NotNil(t, resp.Error)
			assert.Nil(t, resp.Result)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Equal(t, tt.kind, resp.Error.Data.Kind)
			assert.Equal(t, tt.field, resp.Error.Data.Field)
		})
	}
}

func TestSession_IDlessRequestGetsNullID(t *testing.T) {
	s := newTestServer(t, &countingProvider{}, 0).NewSession("s1")

	resp, err := s.Handle(context.Background(), request(t, `{"jsonrpc":"2.0","method":"ping"}`))
	require.NoError(t, err)
	require.NotNil(t, resp)
	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"id":null`)

	resp, err = s.Handle(context.Background(), request(t, `{"jsonrpc":"2.0","method":"notifications/initialized"}`))
	require.NoError(t, err)
	assert.Nil(t, resp)
}

func TestSession_HandleAllPreservesOrder(t *testing.T) {
	s := newTestServer(t, &countingProvider{delay: 5 * time.Millisecond}, 0).NewSession("s1")

	tickers := []string{"aapl", "msft", "goog", "amzn", "tsla"}
	var frames []string
	for i, ticker := range tickers {
		frames = append(frames, fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"method":"tools/call","params":{"name":"get_quote","arguments":{"ticker":%q}}}`, i, ticker))
	}
	frames = append(frames, `{"jsonrpc":"2.0","method":"notifications/initialized"}`)

	msgs, batch, err := DecodeFrame([]byte("[" + strings.Join(frames, ",") + "]"))
	require.NoError(t, err)
	require.True(t, batch)

	responses, err := s.HandleAll(context.Background(), msgs)
	require.NoError(t, err)
	require.Len(t, responses, len(tickers))
	for i, resp := range responses {
		w := toWire(t, resp)
		assert.JSONEq(t, fmt.Sprint(i), string(w.ID))
		assert.Equal(t, strings.ToUpper(tickers[i]), quoteTicker(t, w.Result))
	}
}

func TestSession_BatchConcurrencyIsBounded(t *testing.T) {
	p := &countingProvider{delay: 10 * time.Millisecond}
	s := newTestServer(t, p, 0).NewSession("s1")

	n := maxBatchConcurrency * 3
	frames := make([]string, n)
	for i := range n {
		frames[i] = fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"method":"tools/call","params":{"name":"get_quote","arguments":{"ticker":"aapl"}}}`, i)
	}
	msgs, _, err := DecodeFrame([]byte("[" + strings.Join(frames, ",") + "]"))
	require.NoError(t, err)

	responses, err := s.HandleAll(context.Background(), msgs)
	require.NoError(t, err)
	assert.Len(t, responses, n)
	assert.EqualValues(t, n, p.calls.Load())
	assert.LessOrEqual(t, p.maxInflight.Load(), int32(maxBatchConcurrency))

	p.maxInflight.Store(0)
	var emitted atomic.Int32
	require.NoError(t, s.Stream(context.Background(), msgs, func(*JSONRPCResponse) { emitted.Add(1) }))
	assert.EqualValues(t, n, emitted.Load())
	assert.LessOrEqual(t, p.maxInflight.Load(), int32(maxBatchConcurrency))
}

func TestSession_IdleTimeout(t *testing.T) {
	s := newTestServer(t, &countingProvider{}, 20*time.Millisecond).NewSession("idle")

	var closed atomic.Bool
	s.OnClose(func(*Session) { closed.Store(true) })

	require.Eventually(t, closed.Load, time.Second, 5*time.Millisecond)
	assert.Equal(t, StateClosed, s.State())
}

func TestSession_InFlightCallSurvivesCancellation(t *testing.T) {
	p := &countingProvider{delay: 20 * time.Millisecond}
	s := newTestServer(t, p, 0).NewSession("s1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp, err := s.Handle(ctx, request(t, quoteFrame))
	require.NoError(t, err)
	assert.Nil(t, resp.Error)
	assert.EqualValues(t, 1, p.calls.Load())
}
