package domain

import "time"

// MarketQuote is the latest known price for a ticker. Only the newest value is cached.
type MarketQuote struct {
	Ticker    string    `json:"ticker"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
}
