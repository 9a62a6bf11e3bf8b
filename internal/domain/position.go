package domain

import (
	"fmt"
	"math"
	"sort"
	"time"
)

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Trade reasons written to the trades table.
const (
	ReasonAllocation = "portfolio_allocation"
	ReasonStopLoss   = "stop_loss"
)

// Position is the held quantity of one ticker plus its cost basis.
// A position with zero quantity is never kept in a PortfolioState.
type Position struct {
	Ticker      string  `json:"ticker"`
	Quantity    int64   `json:"quantity"`
	AvgPrice    float64 `json:"avg_price"`     // volume-weighted, buy commissions included
	StopLossPct float64 `json:"stop_loss_pct"` // percent below AvgPrice, 0-100

	UnrealizedPnL *float64 `json:"unrealized_pnl,omitempty"`
	AllocationPct *float64 `json:"allocation_pct,omitempty"`
}

// CostBasis is the total amount paid for the position, commissions included.
func (p *Position) CostBasis() float64 {
	return p.AvgPrice * float64(p.Quantity)
}

// StopPrice is the price below which the position gets liquidated.
func (p *Position) StopPrice() float64 {
	return p.AvgPrice * (1 - p.StopLossPct/100.0)
}

// Trade is an immutable simulated fill.
type Trade struct {
	ID          string         `json:"trade_id"`
	PortfolioID string         `json:"portfolio_id"`
	ExecutedAt  time.Time      `json:"executed_at"`
	Ticker      string         `json:"ticker"`
	Side        Side           `json:"side"`
	Quantity    int64          `json:"quantity"`
	Price       float64        `json:"price"`
	Commission  float64        `json:"commission"`
	Strategy    string         `json:"strategy,omitempty"`
	Reason      string         `json:"reason,omitempty"`
	Notes       string         `json:"notes,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func (t Trade) Notional() float64 {
	return float64(t.Quantity) * t.Price
}

// PortfolioState is the simulated ledger.
type PortfolioState struct {
	Timestamp        time.Time            `json:"timestamp"`
	Cash             float64              `json:"cash"`
	Positions        map[string]*Position `json:"positions"`
	Trades           []Trade              `json:"trades"` // executed during this session only
	RealizedPnL      float64              `json:"realized_pnl"`
	TotalCommissions float64              `json:"total_commissions"`
}

// NewPortfolioState seeds an empty ledger holding only cash.
func NewPortfolioState(cash float64, now time.Time) *PortfolioState {
	return &PortfolioState{
		Timestamp: now,
		Cash:      cash,
		Positions: make(map[string]*Position),
	}
}

// Clone returns a deep copy. Trade metadata maps are shared since trades are never mutated.
func (s *PortfolioState) Clone() *PortfolioState {
	out := &PortfolioState{
		Timestamp:        s.Timestamp,
		Cash:             s.Cash,
		Positions:        make(map[string]*Position, len(s.Positions)),
		Trades:           append([]Trade(nil), s.Trades...),
		RealizedPnL:      s.RealizedPnL,
		TotalCommissions: s.TotalCommissions,
	}
	for k, p := range s.Positions {
		cp := *p
		out.Positions[k] = &cp
	}
	return out
}

// Tickers returns the held tickers in sorted order.
func (s *PortfolioState) Tickers() []string {
	tickers := make([]string, 0, len(s.Positions))
	for t := range s.Positions {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)
	return tickers
}

// Validate checks the ledger integrity invariants.
func (s *PortfolioState) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: nil portfolio state", ErrInvalidState)
	}
	if s.Cash < 0 || math.IsNaN(s.Cash) {
		return fmt.Errorf("%w: negative cash %.2f", ErrInvalidState, s.Cash)
	}
	if s.TotalCommissions < 0 {
		return fmt.Errorf("%w: negative total commissions %.2f", ErrInvalidState, s.TotalCommissions)
	}
	for key, p := range s.Positions {
		if p == nil {
			return fmt.Errorf("%w: nil position for %s", ErrInvalidState, key)
		}
		if key != NormalizeTicker(key) {
			return fmt.Errorf("%w: position key %q is not a normalized ticker", ErrInvalidState, key)
		}
		if p.Ticker != key {
			return fmt.Errorf("%w: position keyed %s holds ticker %s", ErrInvalidState, key, p.Ticker)
		}
		if p.Quantity <= 0 {
			return fmt.Errorf("%w: %s has non-positive quantity %d", ErrInvalidState, key, p.Quantity)
		}
		if !(p.AvgPrice > 0) || math.IsInf(p.AvgPrice, 1) {
			return fmt.Errorf("%w: %s has non-positive avg price %.4f", ErrInvalidState, key, p.AvgPrice)
		}
		if !inPctRange(p.StopLossPct) {
			return fmt.Errorf("%w: %s stop loss %.2f out of range", ErrInvalidState, key, p.StopLossPct)
		}
	}
	return nil
}
