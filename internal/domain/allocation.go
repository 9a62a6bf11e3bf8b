package domain

import (
	"fmt"
	"strings"
)

const pctTolerance = 1e-9

// AllocationTarget is the desired share of total value for one ticker.
type AllocationTarget struct {
	Ticker        string  `json:"ticker" yaml:"ticker"`
	AllocationPct float64 `json:"allocation_pct" yaml:"allocation_pct"`
	StopLossPct   float64 `json:"stop_loss_pct" yaml:"stop_loss_pct"`
	Rationale     string  `json:"rationale,omitempty" yaml:"rationale,omitempty"` // ignored by the engine
}

// TargetAllocation is read-only for the duration of a cycle. Buys follow the order of Positions.
type TargetAllocation struct {
	Positions []AllocationTarget `json:"positions" yaml:"positions"`
}

// PortfolioConstraints are optional portfolio-level limits on an allocation.
type PortfolioConstraints struct {
	MaxPositions   int     `json:"max_positions" yaml:"max_positions"`
	MaxPositionPct float64 `json:"max_position_pct" yaml:"max_position_pct"`
	MinCashPct     float64 `json:"min_cash_pct" yaml:"min_cash_pct"`
}

// NormalizeTicker trims and upper-cases a ticker symbol.
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// Normalize returns a copy with upper-cased tickers.
func (a *TargetAllocation) Normalize() *TargetAllocation {
	out := &TargetAllocation{Positions: make([]AllocationTarget, len(a.Positions))}
	for i, p := range a.Positions {
		p.Ticker = NormalizeTicker(p.Ticker)
		out.Positions[i] = p
	}
	return out
}

// Validate checks ranges, duplicates and that the total does not exceed 100%.
func (a *TargetAllocation) Validate() error {
	if a == nil {
		return fmt.Errorf("%w: nil allocation", ErrInvalidAllocation)
	}
	seen := make(map[string]bool, len(a.Positions))
	var total float64
	for _, p := range a.Positions {
		ticker := NormalizeTicker(p.Ticker)
		if ticker == "" {
			return fmt.Errorf("%w: empty ticker", ErrInvalidAllocation)
		}
		if seen[ticker] {
			return fmt.Errorf("%w: duplicate ticker %s", ErrInvalidAllocation, ticker)
		}
		seen[ticker] = true
		if !inPctRange(p.AllocationPct) {
			return fmt.Errorf("%w: %s allocation %.2f%% out of range", ErrInvalidAllocation, ticker, p.AllocationPct)
		}
		if !inPctRange(p.StopLossPct) {
			return fmt.Errorf("%w: %s stop loss %.2f%% out of range", ErrInvalidAllocation, ticker, p.StopLossPct)
		}
		total += p.AllocationPct
	}
	if total > 100+pctTolerance {
		return fmt.Errorf("%w: total allocation %.4f%% exceeds 100%%", ErrInvalidAllocation, total)
	}
	return nil
}

// inPctRange is false for NaN.
func inPctRange(v float64) bool {
	return v >= 0 && v <= 100
}

// CheckConstraints applies portfolio-level limits. Zero-valued limits are not enforced.
func (a *TargetAllocation) CheckConstraints(c PortfolioConstraints) error {
	var total float64
	held := 0
	for _, p := range a.Positions {
		if p.AllocationPct == 0 {
			continue
		}
		held++
		total += p.AllocationPct
		if c.MaxPositionPct > 0 && p.AllocationPct > c.MaxPositionPct+pctTolerance {
			return fmt.Errorf("%w: %s allocation %.2f%% above max %.2f%%",
				ErrInvalidAllocation, NormalizeTicker(p.Ticker), p.AllocationPct, c.MaxPositionPct)
		}
	}
	if c.MaxPositions > 0 && held > c.MaxPositions {
		return fmt.Errorf("%w: %d positions above max %d", ErrInvalidAllocation, held, c.MaxPositions)
	}
	if c.MinCashPct > 0 && 100-total < c.MinCashPct-pctTolerance {
		return fmt.Errorf("%w: cash %.2f%% below minimum %.2f%%", ErrInvalidAllocation, 100-total, c.MinCashPct)
	}
	return nil
}

// TotalPct is the sum of all target percentages.
func (a *TargetAllocation) TotalPct() float64 {
	var total float64
	for _, p := range a.Positions {
		total += p.AllocationPct
	}
	return total
}

// ByTicker indexes the targets by normalized ticker.
func (a *TargetAllocation) ByTicker() map[string]AllocationTarget {
	out := make(map[string]AllocationTarget, len(a.Positions))
	for _, p := range a.Positions {
		p.Ticker = NormalizeTicker(p.Ticker)
		out[p.Ticker] = p
	}
	return out
}
