package finance

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// QuoteFunc fetches a single quote; CompareQuotes fans out over it.
type QuoteFunc func(ctx context.Context, ticker string) (*Quote, error)

// CompareQuotes fetches every ticker concurrently and assembles a Comparison
// in input order. Any single failure fails the whole comparison.
func CompareQuotes(ctx context.Context, tickers []string, quote QuoteFunc) (*Comparison, error) {
	if len(tickers) < MinCompareTickers {
		return nil, fmt.Errorf("%w: at least %d tickers are required to compare, got %d",
			ErrInvalidInput, MinCompareTickers, len(tickers))
	}

	normalized := make([]string, len(tickers))
	for i, t := range tickers {
		normalized[i] = NormalizeTicker(t)
	}

	quotes := make([]*Quote, len(tickers))
	g, gctx := errgroup.WithContext(ctx)
	for i, ticker := range normalized {
		g.Go(func() error {
			q, err := quote(gctx, ticker)
			if err != nil {
				return fmt.Errorf("compare %s: %w", ticker, err)
			}
			quotes[i] = q
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	data := make([]ComparisonItem, len(quotes))
	for i, q := range quotes {
		data[i] = ComparisonItem{
			Ticker:        normalized[i],
			Price:         q.Price,
			Change:        q.Change,
			ChangePercent: q.ChangePercent,
			Volume:        q.Volume,
			MarketCap:     q.MarketCap,
			PE:            q.PE,
		}
	}

	return &Comparison{
		Tickers:   normalized,
		Data:      data,
		Timestamp: FormatTime(time.Now()),
	}, nil
}
