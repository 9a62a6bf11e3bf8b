package marketdata

import (
	"context"
	"fmt"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/vitos/portfolio_sim/internal/domain"
)

const alpacaName = "alpaca"

// alpacaTrades is the part of *marketdata.Client used here.
type alpacaTrades interface {
	GetLatestTrade(symbol string, req marketdata.GetLatestTradeRequest) (*marketdata.Trade, error)
	GetLatestTrades(symbols []string, req marketdata.GetLatestTradeRequest) (map[string]marketdata.Trade, error)
}

// AlpacaSource prices tickers by their latest trade. Only market data
// endpoints are used; no orders are ever sent.
type AlpacaSource struct {
	client alpacaTrades
	feed   marketdata.Feed
}

func NewAlpacaSource(apiKey, apiSecret, baseURL, feed string) (*AlpacaSource, error) {
	if apiKey == "" || apiSecret == "" {
		return nil, fmt.Errorf("alpaca api key and secret are required")
	}
	client := marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
		BaseURL:   baseURL,
		Feed:      marketdata.Feed(feed),
	})
	return &AlpacaSource{client: client, feed: marketdata.Feed(feed)}, nil
}

func (s *AlpacaSource) Name() string { return alpacaName }

func (s *AlpacaSource) FetchQuote(ctx context.Context, ticker string) (*domain.MarketQuote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	trade, err := s.client.GetLatestTrade(ticker, marketdata.GetLatestTradeRequest{Feed: s.feed})
	if err != nil {
		return nil, fmt.Errorf("%w: alpaca latest trade for %s: %w", domain.ErrDataUnavailable, ticker, err)
	}
	if trade == nil {
		return nil, noPrice(alpacaName, ticker)
	}
	return alpacaQuote(ticker, *trade)
}

func (s *AlpacaSource) FetchQuotes(ctx context.Context, tickers []string) (map[string]*domain.MarketQuote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	trades, err := s.client.GetLatestTrades(tickers, marketdata.GetLatestTradeRequest{Feed: s.feed})
	if err != nil {
		return nil, fmt.Errorf("%w: alpaca latest trades for %v: %w", domain.ErrDataUnavailable, tickers, err)
	}

	out := make(map[string]*domain.MarketQuote, len(trades))
	for symbol, trade := range trades {
		q, err := alpacaQuote(domain.NormalizeTicker(symbol), trade)
		if err != nil {
			return nil, err
		}
		out[q.Ticker] = q
	}
	return out, nil
}

func alpacaQuote(ticker string, trade marketdata.Trade) (*domain.MarketQuote, error) {
	price, err := floatPrice(ticker, trade.Price)
	if err != nil {
		return nil, err
	}
	return &domain.MarketQuote{
		Ticker:    ticker,
		Price:     price,
		Timestamp: trade.Timestamp,
		Source:    alpacaName,
	}, nil
}
