package usecase

import (
	"sync"
	"time"

	"github.com/vitos/portfolio_sim/internal/domain"
)

type cachedQuote struct {
	quote    domain.MarketQuote
	cachedAt time.Time
}

// QuoteCache keeps the last price per ticker. Entries older than the TTL
// are dropped when read; nothing sweeps in the background.
type QuoteCache struct {
	ttl     time.Duration
	entries map[string]cachedQuote
	mu      sync.Mutex
	timeNow func() time.Time // For testing
}

func NewQuoteCache(ttl time.Duration) *QuoteCache {
	return &QuoteCache{
		ttl:     ttl,
		entries: make(map[string]cachedQuote),
		timeNow: time.Now,
	}
}

func (c *QuoteCache) Get(ticker string) (*domain.MarketQuote, bool) {
	ticker = domain.NormalizeTicker(ticker)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[ticker]
	if !ok {
		return nil, false
	}
	if c.timeNow().Sub(entry.cachedAt) > c.ttl {
		delete(c.entries, ticker)
		return nil, false
	}
	q := entry.quote
	return &q, true
}

// Set stores the quote stamped with the current time. Last writer wins.
func (c *QuoteCache) Set(quote *domain.MarketQuote) {
	c.SetAt(quote, c.timeNow())
}

// SetAt stores a quote that was fetched at an earlier time, e.g. loaded from disk.
func (c *QuoteCache) SetAt(quote *domain.MarketQuote, cachedAt time.Time) {
	q := *quote
	q.Ticker = domain.NormalizeTicker(q.Ticker)

	c.mu.Lock()
	c.entries[q.Ticker] = cachedQuote{quote: q, cachedAt: cachedAt}
	c.mu.Unlock()
}

// Fresh reports whether something cached at t is still within the TTL.
func (c *QuoteCache) Fresh(t time.Time) bool {
	return c.timeNow().Sub(t) <= c.ttl
}

func (c *QuoteCache) Invalidate(ticker string) {
	c.mu.Lock()
	delete(c.entries, domain.NormalizeTicker(ticker))
	c.mu.Unlock()
}

func (c *QuoteCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]cachedQuote)
	c.mu.Unlock()
}

// Len counts entries, expired ones included until they are read.
func (c *QuoteCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
