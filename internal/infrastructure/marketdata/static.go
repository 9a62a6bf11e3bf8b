package marketdata

import (
	"context"
	"errors"
	"sync"

	"github.com/vitos/portfolio_sim/internal/domain"
)

const staticName = "static"

// StaticSource serves a fixed price board, for offline runs and replays.
type StaticSource struct {
	mu     sync.RWMutex
	prices map[string]float64
}

func NewStaticSource(prices map[string]float64) *StaticSource {
	s := &StaticSource{prices: make(map[string]float64, len(prices))}
	for t, p := range prices {
		s.prices[domain.NormalizeTicker(t)] = p
	}
	return s
}

func (s *StaticSource) Name() string { return staticName }

// Set replaces one price.
func (s *StaticSource) Set(ticker string, price float64) {
	s.mu.Lock()
	s.prices[domain.NormalizeTicker(ticker)] = price
	s.mu.Unlock()
}

func (s *StaticSource) FetchQuote(ctx context.Context, ticker string) (*domain.MarketQuote, error) {
	s.mu.RLock()
	p, ok := s.prices[ticker]
	s.mu.RUnlock()
	if !ok {
		return nil, noPrice(staticName, ticker)
	}
	price, err := floatPrice(ticker, p)
	if err != nil {
		return nil, err
	}
	return &domain.MarketQuote{Ticker: ticker, Price: price, Source: staticName}, nil
}

func (s *StaticSource) FetchQuotes(ctx context.Context, tickers []string) (map[string]*domain.MarketQuote, error) {
	out := make(map[string]*domain.MarketQuote, len(tickers))
	for _, t := range tickers {
		q, err := s.FetchQuote(ctx, t)
		if errors.Is(err, domain.ErrInvalidPrice) {
			return nil, err
		}
		if err != nil {
			continue
		}
		out[t] = q
	}
	return out, nil
}
