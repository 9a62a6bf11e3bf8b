package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/quote"
	"github.com/vitos/portfolio_sim/internal/domain"
)

const yahooName = "yahoo"

// YahooSource prices tickers through the Yahoo Finance quote endpoint,
// which accepts many symbols per request.
type YahooSource struct {
	get  func(symbol string) (*finance.Quote, error)
	list func(symbols []string) ([]*finance.Quote, error)
}

func NewYahooSource(timeout time.Duration) *YahooSource {
	if timeout > 0 {
		finance.SetHTTPClient(&http.Client{Timeout: timeout})
	}
	return &YahooSource{get: quote.Get, list: listYahooQuotes}
}

func listYahooQuotes(symbols []string) ([]*finance.Quote, error) {
	iter := quote.List(symbols)
	var out []*finance.Quote
	for iter.Next() {
		out = append(out, iter.Quote())
	}
	return out, iter.Err()
}

func (s *YahooSource) Name() string { return yahooName }

func (s *YahooSource) FetchQuote(ctx context.Context, ticker string) (*domain.MarketQuote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q, err := s.get(ticker)
	if err != nil {
		return nil, fmt.Errorf("%w: yahoo quote for %s: %w", domain.ErrDataUnavailable, ticker, err)
	}
	if q == nil {
		return nil, noPrice(yahooName, ticker)
	}
	return yahooQuote(ticker, q)
}

// FetchQuotes leaves tickers Yahoo does not know out of the result.
func (s *YahooSource) FetchQuotes(ctx context.Context, tickers []string) (map[string]*domain.MarketQuote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	quotes, err := s.list(tickers)
	if err != nil {
		return nil, fmt.Errorf("%w: yahoo quotes for %v: %w", domain.ErrDataUnavailable, tickers, err)
	}

	out := make(map[string]*domain.MarketQuote, len(quotes))
	for _, q := range quotes {
		if q == nil {
			continue
		}
		mq, err := yahooQuote(domain.NormalizeTicker(q.Symbol), q)
		if err != nil {
			return nil, err
		}
		out[mq.Ticker] = mq
	}
	return out, nil
}

func yahooQuote(ticker string, q *finance.Quote) (*domain.MarketQuote, error) {
	price, err := floatPrice(ticker, q.RegularMarketPrice)
	if err != nil {
		return nil, err
	}
	mq := &domain.MarketQuote{Ticker: ticker, Price: price, Source: yahooName}
	if q.RegularMarketTime > 0 {
		mq.Timestamp = time.Unix(int64(q.RegularMarketTime), 0).UTC()
	}
	return mq, nil
}
