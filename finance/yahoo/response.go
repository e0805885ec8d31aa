package yahoo

import (
	"time"

	"github.com/mhpenta/yahoo-finance-mcp/finance"
)

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *apiError     `json:"error"`
	} `json:"chart"`
}

type apiError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Meta       chartMeta `json:"meta"`
	Timestamp  []int64   `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*int64   `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

type chartMeta struct {
	Currency             string   `json:"currency"`
	Symbol               string   `json:"symbol"`
	ExchangeTimezoneName string   `json:"exchangeTimezoneName"`
	RegularMarketTime    int64    `json:"regularMarketTime"`
	RegularMarketPrice   float64  `json:"regularMarketPrice"`
	RegularMarketVolume  int64    `json:"regularMarketVolume"`
	ChartPreviousClose   *float64 `json:"chartPreviousClose"`
	PreviousClose        *float64 `json:"previousClose"`
	FiftyTwoWeekHigh     *float64 `json:"fiftyTwoWeekHigh"`
	FiftyTwoWeekLow      *float64 `json:"fiftyTwoWeekLow"`
}

type searchResponse struct {
	News []struct {
		UUID                string `json:"uuid"`
		Title               string `json:"title"`
		Publisher           string `json:"publisher"`
		Link                string `json:"link"`
		ProviderPublishTime int64  `json:"providerPublishTime"`
	} `json:"news"`
}

func (r *chartResult) quote(symbol string) *finance.Quote {
	m := r.Meta
	q := &finance.Quote{
		Ticker:        symbol,
		Price:         m.RegularMarketPrice,
		Volume:        m.RegularMarketVolume,
		Currency:      m.Currency,
		High52Week:    m.FiftyTwoWeekHigh,
		Low52Week:     m.FiftyTwoWeekLow,
		PreviousClose: m.PreviousClose,
		Timestamp:     finance.FormatTime(time.Now()),
	}
	if q.PreviousClose == nil {
		q.PreviousClose = m.ChartPreviousClose
	}
	if q.PreviousClose != nil && *q.PreviousClose != 0 {
		q.Change = q.Price - *q.PreviousClose
		q.ChangePercent = q.Change / *q.PreviousClose * 100
	}
	if m.RegularMarketTime > 0 {
		q.Timestamp = finance.FormatTime(time.Unix(m.RegularMarketTime, 0))
	}
	if len(r.Indicators.Quote) > 0 {
		for _, open := range r.Indicators.Quote[0].Open {
			if open != nil {
				q.Open = open
				break
			}
		}
	}
	return q
}

// bars zips the parallel indicator arrays into OHLCV bars, skipping points
// Yahoo reports as null (halted or not yet traded).
func (r *chartResult) bars(interval string) []finance.Bar {
	if len(r.Indicators.Quote) == 0 {
		return nil
	}
	ind := r.Indicators.Quote[0]

	loc := time.UTC
	if r.Meta.ExchangeTimezoneName != "" {
		if l, err := time.LoadLocation(r.Meta.ExchangeTimezoneName); err == nil {
			loc = l
		}
	}
	layout := time.DateOnly
	if finance.IsIntraday(interval) {
		layout = time.RFC3339
	}

	out := make([]finance.Bar, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		closeVal := at(ind.Close, i)
		if closeVal == nil {
			continue
		}
		bar := finance.Bar{
			Date:  time.Unix(ts, 0).In(loc).Format(layout),
			Close: *closeVal,
		}
		if v := at(ind.Open, i); v != nil {
			bar.Open = *v
		}
		if v := at(ind.High, i); v != nil {
			bar.High = *v
		}
		if v := at(ind.Low, i); v != nil {
			bar.Low = *v
		}
		if v := at(ind.Volume, i); v != nil {
			bar.Volume = *v
		}
		out = append(out, bar)
	}
	return out
}

func at[T any](values []*T, i int) *T {
	if i < len(values) {
		return values[i]
	}
	return nil
}
