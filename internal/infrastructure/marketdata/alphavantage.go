package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/vitos/portfolio_sim/internal/domain"
)

const alphaVantageName = "alphavantage"

// AlphaVantageSource reads GLOBAL_QUOTE. The free tier has no batch endpoint.
type AlphaVantageSource struct {
	client  *resty.Client
	baseURL string
	apiKey  string
}

type globalQuoteResponse struct {
	GlobalQuote  map[string]string `json:"Global Quote"`
	Note         string            `json:"Note"`
	Information  string            `json:"Information"`
	ErrorMessage string            `json:"Error Message"`
}

func NewAlphaVantageSource(apiKey, baseURL string, timeout time.Duration) (*AlphaVantageSource, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("alpha vantage api key is not set")
	}
	if baseURL == "" {
		baseURL = "https://www.alphavantage.co/query"
	}

	client := resty.New()
	if timeout > 0 {
		client.SetTimeout(timeout)
	}

	return &AlphaVantageSource{
		client:  client,
		baseURL: baseURL,
		apiKey:  apiKey,
	}, nil
}

func (s *AlphaVantageSource) Name() string { return alphaVantageName }

func (s *AlphaVantageSource) FetchQuote(ctx context.Context, ticker string) (*domain.MarketQuote, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"function": "GLOBAL_QUOTE",
			"symbol":   ticker,
			"apikey":   s.apiKey,
		}).
		Get(s.baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: alpha vantage request for %s: %w", domain.ErrDataUnavailable, ticker, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: alpha vantage status %d for %s", domain.ErrDataUnavailable, resp.StatusCode(), ticker)
	}

	var body globalQuoteResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("%w: decode alpha vantage response for %s: %w", domain.ErrDataUnavailable, ticker, err)
	}

	// Throttled and invalid-key responses still come back as 200.
	switch {
	case body.Note != "":
		return nil, fmt.Errorf("%w: alpha vantage throttled: %s", domain.ErrDataUnavailable, body.Note)
	case body.Information != "":
		return nil, fmt.Errorf("%w: alpha vantage: %s", domain.ErrDataUnavailable, body.Information)
	case body.ErrorMessage != "":
		return nil, fmt.Errorf("%w: alpha vantage: %s", domain.ErrDataUnavailable, body.ErrorMessage)
	}

	raw, ok := body.GlobalQuote["05. price"]
	if !ok || raw == "" {
		return nil, noPrice(alphaVantageName, ticker)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: alpha vantage price %q for %s: %w", domain.ErrDataUnavailable, raw, ticker, err)
	}
	price, err := toPrice(ticker, d)
	if err != nil {
		return nil, err
	}

	return &domain.MarketQuote{
		Ticker: ticker,
		Price:  price,
		Source: alphaVantageName,
	}, nil
}
