package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/vitos/portfolio_sim/internal/domain"
	"go.uber.org/zap"
)

// MarketDataProvider answers quote requests from the cache first and
// otherwise from the upstream source, one rate-limited call at a time.
type MarketDataProvider struct {
	source  domain.QuoteSource
	limiter *RateLimiter
	cache   *QuoteCache
	store   domain.QuoteCacheStore // optional
	logger  *zap.Logger
	timeNow func() time.Time // For testing
}

func NewMarketDataProvider(source domain.QuoteSource, limiter *RateLimiter, cache *QuoteCache, logger *zap.Logger) *MarketDataProvider {
	return &MarketDataProvider{
		source:  source,
		limiter: limiter,
		cache:   cache,
		logger:  logger.With(zap.String("component", "market-data"), zap.String("source", source.Name())),
		timeNow: time.Now,
	}
}

// WithStore enables write-through persistence of fetched prices.
func (p *MarketDataProvider) WithStore(store domain.QuoteCacheStore) *MarketDataProvider {
	p.store = store
	return p
}

func (p *MarketDataProvider) GetQuote(ctx context.Context, ticker string) (*domain.MarketQuote, error) {
	ticker = domain.NormalizeTicker(ticker)
	if ticker == "" {
		return nil, fmt.Errorf("%w: empty ticker", domain.ErrDataUnavailable)
	}

	if q, ok := p.lookup(ctx, ticker); ok {
		return q, nil
	}

	if err := p.limiter.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("%w: %s: waiting for rate limiter: %w", domain.ErrDataUnavailable, ticker, err)
	}

	q, err := p.source.FetchQuote(ctx, ticker)
	if err != nil {
		return nil, unavailable(ticker, err)
	}
	return p.accept(ctx, ticker, q)
}

// GetQuotes prices every ticker or fails as a whole. When the source can
// batch, all cache misses go out in a single rate-limited request.
func (p *MarketDataProvider) GetQuotes(ctx context.Context, tickers []string) (map[string]*domain.MarketQuote, error) {
	out := make(map[string]*domain.MarketQuote, len(tickers))
	var misses []string
	seen := make(map[string]bool, len(tickers))

	for _, t := range tickers {
		t = domain.NormalizeTicker(t)
		if t == "" {
			return nil, fmt.Errorf("%w: empty ticker", domain.ErrDataUnavailable)
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		if q, ok := p.lookup(ctx, t); ok {
			out[t] = q
			continue
		}
		misses = append(misses, t)
	}

	if len(misses) == 0 {
		return out, nil
	}

	batch, ok := p.source.(domain.BatchQuoteSource)
	if !ok || len(misses) == 1 {
		for _, t := range misses {
			q, err := p.GetQuote(ctx, t)
			if err != nil {
				return nil, err
			}
			out[t] = q
		}
		return out, nil
	}

	if err := p.limiter.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("%w: waiting for rate limiter: %w", domain.ErrDataUnavailable, err)
	}
	fetched, err := batch.FetchQuotes(ctx, misses)
	if err != nil {
		return nil, unavailable(fmt.Sprint(misses), err)
	}
	for _, t := range misses {
		q, err := p.accept(ctx, t, fetched[t])
		if err != nil {
			return nil, err
		}
		out[t] = q
	}

	p.logger.Debug("Batch quotes fetched", zap.Strings("tickers", misses))
	return out, nil
}

func (p *MarketDataProvider) lookup(ctx context.Context, ticker string) (*domain.MarketQuote, bool) {
	if q, ok := p.cache.Get(ticker); ok {
		return q, true
	}
	if p.store == nil {
		return nil, false
	}

	q, found, err := p.store.LoadPrice(ctx, ticker)
	if err != nil {
		p.logger.Warn("Failed to load persisted price", zap.String("ticker", ticker), zap.Error(err))
		return nil, false
	}
	if !found || !validPrice(q.Price) || !p.cache.Fresh(q.Timestamp) {
		return nil, false
	}
	p.cache.SetAt(q, q.Timestamp)
	return q, true
}

// accept validates an upstream quote and stores it in the cache.
func (p *MarketDataProvider) accept(ctx context.Context, ticker string, q *domain.MarketQuote) (*domain.MarketQuote, error) {
	if q == nil {
		return nil, fmt.Errorf("%w: no quote returned for %s", domain.ErrDataUnavailable, ticker)
	}
	if !validPrice(q.Price) {
		return nil, fmt.Errorf("%w: %w: %s quoted at %v", domain.ErrDataUnavailable, domain.ErrInvalidPrice, ticker, q.Price)
	}

	out := &domain.MarketQuote{
		Ticker:    ticker,
		Price:     q.Price,
		Timestamp: p.timeNow(),
		Source:    q.Source,
	}
	if out.Source == "" {
		out.Source = p.source.Name()
	}
	p.cache.SetAt(out, out.Timestamp)

	if p.store != nil {
		if err := p.store.StorePrice(ctx, out); err != nil {
			p.logger.Warn("Failed to persist price", zap.String("ticker", ticker), zap.Error(err))
		}
	}
	return out, nil
}

// validPrice is false for NaN, infinities and non-positive prices.
func validPrice(price float64) bool {
	return price > 0 && !math.IsInf(price, 1)
}

func unavailable(ticker string, err error) error {
	if errors.Is(err, domain.ErrDataUnavailable) {
		return err
	}
	return fmt.Errorf("%w: fetch %s: %w", domain.ErrDataUnavailable, ticker, err)
}
