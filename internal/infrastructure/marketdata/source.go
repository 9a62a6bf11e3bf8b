package marketdata

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vitos/portfolio_sim/internal/domain"
)

const (
	ProviderAlphaVantage = "alphavantage"
	ProviderYahoo        = "yahoo"
	ProviderAlpaca       = "alpaca"
	ProviderStatic       = "static"
)

// Options selects and configures one upstream vendor.
type Options struct {
	Provider string
	Timeout  time.Duration

	AlphaVantageKey string
	AlphaVantageURL string

	AlpacaKey    string
	AlpacaSecret string
	AlpacaURL    string
	AlpacaFeed   string

	StaticPrices map[string]float64
}

// NewSource builds the configured vendor. Batch support is discovered by the
// caller through domain.BatchQuoteSource.
func NewSource(opts Options) (domain.QuoteSource, error) {
	switch opts.Provider {
	case ProviderAlphaVantage:
		return NewAlphaVantageSource(opts.AlphaVantageKey, opts.AlphaVantageURL, opts.Timeout)
	case ProviderYahoo:
		return NewYahooSource(opts.Timeout), nil
	case ProviderAlpaca:
		return NewAlpacaSource(opts.AlpacaKey, opts.AlpacaSecret, opts.AlpacaURL, opts.AlpacaFeed)
	case ProviderStatic:
		return NewStaticSource(opts.StaticPrices), nil
	default:
		return nil, fmt.Errorf("unknown market data provider %q", opts.Provider)
	}
}

// toPrice rejects non-positive vendor prices and rounds to 1e-6.
func toPrice(ticker string, d decimal.Decimal) (float64, error) {
	if !d.IsPositive() {
		return 0, fmt.Errorf("%w: %w: %s quoted at %s", domain.ErrDataUnavailable, domain.ErrInvalidPrice, ticker, d)
	}
	return d.Round(6).InexactFloat64(), nil
}

// floatPrice validates a float quote before it reaches decimal, which
// panics on NaN and Inf.
func floatPrice(ticker string, f float64) (float64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %w: %s quoted at %v", domain.ErrDataUnavailable, domain.ErrInvalidPrice, ticker, f)
	}
	return toPrice(ticker, decimal.NewFromFloat(f))
}

func noPrice(source, ticker string) error {
	return fmt.Errorf("%w: %s has no price for %s", domain.ErrDataUnavailable, source, ticker)
}
