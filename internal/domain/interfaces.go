package domain

import "context"

// QuoteProvider is what the execution engine consumes: a current quote per ticker.
type QuoteProvider interface {
	GetQuote(ctx context.Context, ticker string) (*MarketQuote, error)
	// GetQuotes returns a quote for every requested ticker or fails as a whole.
	GetQuotes(ctx context.Context, tickers []string) (map[string]*MarketQuote, error)
}

// QuoteSource is an upstream vendor. Calls are not rate limited or cached here.
type QuoteSource interface {
	Name() string
	FetchQuote(ctx context.Context, ticker string) (*MarketQuote, error)
}

// BatchQuoteSource is implemented by vendors able to price several tickers in one request.
type BatchQuoteSource interface {
	QuoteSource
	FetchQuotes(ctx context.Context, tickers []string) (map[string]*MarketQuote, error)
}

// QuoteCacheStore persists last-known prices across restarts.
type QuoteCacheStore interface {
	LoadPrice(ctx context.Context, ticker string) (*MarketQuote, bool, error)
	StorePrice(ctx context.Context, quote *MarketQuote) error
}

// PortfolioRepository loads and saves ledger snapshots.
type PortfolioRepository interface {
	// LoadLatest returns the newest snapshot; found is false when none was ever saved.
	LoadLatest(ctx context.Context) (state *PortfolioState, found bool, err error)
	// SaveCycle stores a snapshot and appends trades atomically.
	SaveCycle(ctx context.Context, state *PortfolioState, trades []Trade, reason string) error
}

// TradeRepository reads the append-only trade log.
type TradeRepository interface {
	ListTrades(ctx context.Context, limit int) ([]Trade, error)
}
