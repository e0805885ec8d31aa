package yahoo

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhpenta/yahoo-finance-mcp/finance"
	"github.com/mhpenta/yahoo-finance-mcp/tools"
)

const chartBody = `{"chart":{"result":[{"meta":{"currency":"USD","symbol":"%s","exchangeTimezoneName":"America/New_York",
"regularMarketTime":1700000000,"regularMarketPrice":110.5,"regularMarketVolume":1234567,"chartPreviousClose":100,
"fiftyTwoWeekHigh":150,"fiftyTwoWeekLow":80},
"timestamp":[1699968600,1700055000,1700141400],
"indicators":{"quote":[{"open":[101,null,103],"high":[111,112,113],"low":[99,98,97],"close":[110,null,110.5],"volume":[1000,2000,3000]}]}}],"error":null}}`

const notFoundBody = `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`

type fakeYahoo struct {
	mu      sync.Mutex
	queries []string
}

func (f *fakeYahoo) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v8/finance/chart/{symbol}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.queries = append(f.queries, r.URL.RawQuery)
		f.mu.Unlock()

		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		symbol := r.PathValue("symbol")
		switch symbol {
		case "GHOST":
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, notFoundBody)
		case "BOOM":
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, "oops")
		default:
			fmt.Fprintf(w, chartBody, symbol)
		}
	})
	mux.HandleFunc("/v1/finance/search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "AAPL", r.URL.Query().Get("q"))
		var items []string
		for i := 0; i < 8; i++ {
			items = append(items, fmt.Sprintf(
				`{"uuid":"u%d","title":"Headline %d","publisher":"Reuters","link":"https://example.com/%d","providerPublishTime":%d}`,
				i, i, i, 1700000000+i))
		}
		fmt.Fprintf(w, `{"news":[%s]}`, strings.Join(items, ","))
	})
	return mux
}

func newTestClient(t *testing.T) (*Client, *fakeYahoo) {
	t.Helper()
	fake := &fakeYahoo{}
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)
	return New(WithBaseURL(srv.URL), WithHTTPClient(srv.Client())), fake
}

func TestQuote_UppercasesTicker(t *testing.T) {
	c, _ := newTestClient(t)

	q, err := c.Quote(context.Background(), "aapl")
	require.NoError(t, err)
	require.Equal(t, "AAPL", q.Ticker)
	require.Equal(t, 110.5, q.Price)
	require.InDelta(t, 10.5, q.Change, 1e-9)
	require.InDelta(t, 10.5, q.ChangePercent, 1e-9)
	require.Equal(t, int64(1234567), q.Volume)
	require.NotNil(t, q.Open)
	require.Equal(t, 101.0, *q.Open)
	require.Equal(t, "USD", q.Currency)
}

func TestQuote_NotFound(t *testing.T) {
	c, _ := newTestClient(t)

	_, err := c.Quote(context.Background(), "ghost")
	require.ErrorIs(t, err, finance.ErrNotFound)
	require.Contains(t, err.Error(), "GHOST")
}

func TestQuote_UpstreamError(t *testing.T) {
	c, _ := newTestClient(t)

	_, err := c.Quote(context.Background(), "boom")
	require.ErrorIs(t, err, finance.ErrUpstream)
}

func TestHistorical_SkipsNullBars(t *testing.T) {
	c, _ := newTestClient(t)

	h, err := c.Historical(context.Background(), "msft", "5d", "1d")
	require.NoError(t, err)
	require.Equal(t, "MSFT", h.Ticker)
	require.Equal(t, "5d", h.Range)
	require.Len(t, h.Data, 2)
	require.Equal(t, "2023-11-14", h.Data[0].Date)
	require.Equal(t, 103.0, h.Data[1].Open)
	require.Equal(t, int64(3000), h.Data[1].Volume)
}

func TestHistorical_UnsupportedRangeFallsBack(t *testing.T) {
	c, fake := newTestClient(t)

	bogus, err := c.Historical(context.Background(), "msft", "forever", "1d")
	require.NoError(t, err)
	monthly, err := c.Historical(context.Background(), "msft", "1mo", "1d")
	require.NoError(t, err)

	require.Equal(t, monthly, bogus)
	require.Len(t, fake.queries, 2)
	require.Equal(t, fake.queries[1], fake.queries[0])
	require.Contains(t, fake.queries[0], "range=1mo")
}

func TestHistoricalTool_RangeFallbackOutsideDispatcher(t *testing.T) {
	c, fake := newTestClient(t)
	registry, err := tools.NewRegistry(c)
	require.NoError(t, err)

	tool, ok := registry.Lookup(tools.GetHistoricalData)
	require.True(t, ok)
	result, err := tool.Execute(context.Background(), []byte(`{"ticker":"msft","range":"forever","interval":"7s"}`))
	require.NoError(t, err)

	h, ok := result.Output.(*finance.History)
	require.True(t, ok)
	assert.Equal(t, "1mo", h.Range)
	assert.Equal(t, "1d", h.Interval)
	require.Len(t, fake.queries, 1)
	assert.Contains(t, fake.queries[0], "range=1mo")
	assert.Contains(t, fake.queries[0], "interval=1d")

	// Through the dispatcher the same arguments are rejected before any request.
	d := tools.NewDispatcher(registry, nil)
	_, err = d.Invoke(context.Background(), tools.GetHistoricalData, map[string]any{"ticker": "msft", "range": "forever"})
	te, ok := tools.AsError(err)
	require.True(t, ok)
	assert.Equal(t, tools.KindInvalidArgument, te.Kind)
	assert.Equal(t, "range", te.Field)
	assert.Len(t, fake.queries, 1)
}

func TestNews_RespectsLimit(t *testing.T) {
	c, _ := newTestClient(t)

	n, err := c.News(context.Background(), "aapl", 3)
	require.NoError(t, err)
	require.Equal(t, "AAPL", n.Ticker)
	require.Len(t, n.News, 3)
	require.Equal(t, "Reuters", n.News[0].Source)

	_, err = c.News(context.Background(), "aapl", 0)
	require.ErrorIs(t, err, finance.ErrInvalidInput)
	_, err = c.News(context.Background(), "aapl", 51)
	require.ErrorIs(t, err, finance.ErrInvalidInput)
}

func TestCompare(t *testing.T) {
	c, _ := newTestClient(t)

	cmp, err := c.Compare(context.Background(), []string{"msft", "aapl"})
	require.NoError(t, err)
	require.Equal(t, []string{"MSFT", "AAPL"}, cmp.Tickers)
	require.Equal(t, "MSFT", cmp.Data[0].Ticker)

	_, err = c.Compare(context.Background(), []string{"msft", "ghost"})
	require.ErrorIs(t, err, finance.ErrNotFound)
}
