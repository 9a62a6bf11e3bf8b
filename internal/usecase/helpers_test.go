package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vitos/portfolio_sim/internal/domain"
)

var testEpoch = time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)

// fakeClock drives RateLimiter and QuoteCache deterministically. Sleeping advances it.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: testEpoch}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	c.mu.Unlock()
	return ctx.Err()
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

// MockQuotes is a fixed price board implementing domain.QuoteProvider.
type MockQuotes struct {
	Prices map[string]float64
	Calls  int
}

func (m *MockQuotes) GetQuote(ctx context.Context, ticker string) (*domain.MarketQuote, error) {
	m.Calls++
	ticker = domain.NormalizeTicker(ticker)
	price, ok := m.Prices[ticker]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrDataUnavailable, ticker)
	}
	return &domain.MarketQuote{Ticker: ticker, Price: price, Timestamp: testEpoch, Source: "mock"}, nil
}

func (m *MockQuotes) GetQuotes(ctx context.Context, tickers []string) (map[string]*domain.MarketQuote, error) {
	out := make(map[string]*domain.MarketQuote, len(tickers))
	for _, t := range tickers {
		q, err := m.GetQuote(ctx, t)
		if err != nil {
			return nil, err
		}
		out[q.Ticker] = q
	}
	return out, nil
}

// MockSource is an upstream vendor stub. Batch mode is opt-in via MockBatchSource.
type MockSource struct {
	Prices     map[string]float64
	Err        error
	FetchCalls []string
}

func (m *MockSource) Name() string { return "mock" }

func (m *MockSource) FetchQuote(ctx context.Context, ticker string) (*domain.MarketQuote, error) {
	m.FetchCalls = append(m.FetchCalls, ticker)
	if m.Err != nil {
		return nil, m.Err
	}
	price, ok := m.Prices[ticker]
	if !ok {
		return nil, fmt.Errorf("%w: no price for %s", domain.ErrDataUnavailable, ticker)
	}
	return &domain.MarketQuote{Ticker: ticker, Price: price}, nil
}

type MockBatchSource struct {
	MockSource
	BatchCalls [][]string
}

func (m *MockBatchSource) FetchQuotes(ctx context.Context, tickers []string) (map[string]*domain.MarketQuote, error) {
	m.BatchCalls = append(m.BatchCalls, append([]string(nil), tickers...))
	if m.Err != nil {
		return nil, m.Err
	}
	out := make(map[string]*domain.MarketQuote)
	for _, t := range tickers {
		if price, ok := m.Prices[t]; ok {
			out[t] = &domain.MarketQuote{Ticker: t, Price: price}
		}
	}
	return out, nil
}

// MockPriceStore is an in-memory domain.QuoteCacheStore.
type MockPriceStore struct {
	Quotes map[string]domain.MarketQuote
}

func (m *MockPriceStore) LoadPrice(ctx context.Context, ticker string) (*domain.MarketQuote, bool, error) {
	q, ok := m.Quotes[ticker]
	if !ok {
		return nil, false, nil
	}
	return &q, true, nil
}

func (m *MockPriceStore) StorePrice(ctx context.Context, quote *domain.MarketQuote) error {
	if m.Quotes == nil {
		m.Quotes = make(map[string]domain.MarketQuote)
	}
	m.Quotes[quote.Ticker] = *quote
	return nil
}

func position(ticker string, qty int64, avg, stop float64) *domain.Position {
	return &domain.Position{Ticker: ticker, Quantity: qty, AvgPrice: avg, StopLossPct: stop}
}

func stateWith(cash float64, positions ...*domain.Position) *domain.PortfolioState {
	s := domain.NewPortfolioState(cash, testEpoch)
	for _, p := range positions {
		s.Positions[p.Ticker] = p
	}
	return s
}

func allocation(targets ...domain.AllocationTarget) *domain.TargetAllocation {
	return &domain.TargetAllocation{Positions: targets}
}

func target(ticker string, pct, stop float64) domain.AllocationTarget {
	return domain.AllocationTarget{Ticker: ticker, AllocationPct: pct, StopLossPct: stop}
}
