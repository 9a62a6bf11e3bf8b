package domain

// PositionMetrics are mark-to-market figures for one held position.
type PositionMetrics struct {
	Ticker        string  `json:"ticker"`
	Quantity      int64   `json:"quantity"`
	AvgPrice      float64 `json:"avg_price"`
	MarketPrice   float64 `json:"market_price"`
	MarketValue   float64 `json:"market_value"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	AllocationPct float64 `json:"allocation_pct"`
	StopLossPct   float64 `json:"stop_loss_pct"`
	StopPrice     float64 `json:"stop_price"`
}

// PortfolioMetrics are derived from a PortfolioState and a price per held ticker.
// Percentages are 0-100; position and cash percentages add up to 100.
type PortfolioMetrics struct {
	TotalValue        float64           `json:"total_value"`
	Cash              float64           `json:"cash"`
	CashAllocationPct float64           `json:"cash_allocation_pct"`
	UnrealizedPnL     float64           `json:"unrealized_pnl"`
	RealizedPnL       float64           `json:"realized_pnl"`
	TotalCommissions  float64           `json:"total_commissions"`
	Positions         []PositionMetrics `json:"positions"`
}
