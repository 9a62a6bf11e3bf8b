package domain_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/portfolio_sim/internal/domain"
)

func TestTargetAllocation_Validate(t *testing.T) {
	tests := []struct {
		name    string
		targets []domain.AllocationTarget
		wantErr bool
	}{
		{"empty allocation is all cash", nil, false},
		{"valid", []domain.AllocationTarget{{Ticker: "aapl", AllocationPct: 50, StopLossPct: 10}, {Ticker: "MSFT", AllocationPct: 30}}, false},
		{"exactly 100", []domain.AllocationTarget{{Ticker: "AAPL", AllocationPct: 60}, {Ticker: "MSFT", AllocationPct: 40}}, false},
		{"over 100", []domain.AllocationTarget{{Ticker: "AAPL", AllocationPct: 60}, {Ticker: "MSFT", AllocationPct: 41}}, true},
		{"negative pct", []domain.AllocationTarget{{Ticker: "AAPL", AllocationPct: -1}}, true},
		{"stop loss above 100", []domain.AllocationTarget{{Ticker: "AAPL", AllocationPct: 10, StopLossPct: 101}}, true},
		{"NaN pct", []domain.AllocationTarget{{Ticker: "AAPL", AllocationPct: math.NaN()}}, true},
		{"NaN stop loss", []domain.AllocationTarget{{Ticker: "AAPL", AllocationPct: 10, StopLossPct: math.NaN()}}, true},
		{"empty ticker", []domain.AllocationTarget{{Ticker: "  ", AllocationPct: 10}}, true},
		{"duplicate after normalization", []domain.AllocationTarget{{Ticker: "aapl", AllocationPct: 10}, {Ticker: "AAPL", AllocationPct: 10}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alloc := &domain.TargetAllocation{Positions: tt.targets}
			err := alloc.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidAllocation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTargetAllocation_CheckConstraints(t *testing.T) {
	alloc := &domain.TargetAllocation{Positions: []domain.AllocationTarget{
		{Ticker: "AAPL", AllocationPct: 20},
		{Ticker: "MSFT", AllocationPct: 15},
		{Ticker: "IBM", AllocationPct: 0},
	}}

	assert.NoError(t, alloc.CheckConstraints(domain.PortfolioConstraints{}))
	assert.NoError(t, alloc.CheckConstraints(domain.PortfolioConstraints{MaxPositions: 2, MaxPositionPct: 20, MinCashPct: 65}))
	assert.ErrorIs(t, alloc.CheckConstraints(domain.PortfolioConstraints{MaxPositions: 1}), domain.ErrInvalidAllocation)
	assert.ErrorIs(t, alloc.CheckConstraints(domain.PortfolioConstraints{MaxPositionPct: 19}), domain.ErrInvalidAllocation)
	assert.ErrorIs(t, alloc.CheckConstraints(domain.PortfolioConstraints{MinCashPct: 70}), domain.ErrInvalidAllocation)
}

func TestTargetAllocation_ByTickerNormalizes(t *testing.T) {
	alloc := &domain.TargetAllocation{Positions: []domain.AllocationTarget{{Ticker: " msft ", AllocationPct: 30}}}

	byTicker := alloc.ByTicker()
	require.Contains(t, byTicker, "MSFT")
	assert.Equal(t, 30.0, byTicker["MSFT"].AllocationPct)
	assert.Equal(t, " msft ", alloc.Positions[0].Ticker, "input must stay untouched")
	assert.Equal(t, "MSFT", alloc.Normalize().Positions[0].Ticker)
}

func TestPortfolioState_Validate(t *testing.T) {
	now := time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)

	state := domain.NewPortfolioState(1000, now)
	require.NoError(t, state.Validate())

	state.Positions["AAPL"] = &domain.Position{Ticker: "AAPL", Quantity: 0, AvgPrice: 100}
	assert.ErrorIs(t, state.Validate(), domain.ErrInvalidState)

	state.Positions["AAPL"] = &domain.Position{Ticker: "AAPL", Quantity: 3, AvgPrice: 0}
	assert.ErrorIs(t, state.Validate(), domain.ErrInvalidState)

	state.Positions["AAPL"] = &domain.Position{Ticker: "MSFT", Quantity: 3, AvgPrice: 100}
	assert.ErrorIs(t, state.Validate(), domain.ErrInvalidState)

	state.Positions["AAPL"] = &domain.Position{Ticker: "AAPL", Quantity: 3, AvgPrice: math.NaN()}
	assert.ErrorIs(t, state.Validate(), domain.ErrInvalidState)

	delete(state.Positions, "AAPL")
	state.Positions["aapl"] = &domain.Position{Ticker: "aapl", Quantity: 3, AvgPrice: 100}
	assert.ErrorIs(t, state.Validate(), domain.ErrInvalidState, "ledger keys must be normalized tickers")

	delete(state.Positions, "aapl")
	state.Positions["AAPL"] = &domain.Position{Ticker: "AAPL", Quantity: 3, AvgPrice: 100}
	require.NoError(t, state.Validate())
	state.Cash = -0.01
	assert.ErrorIs(t, state.Validate(), domain.ErrInvalidState)
}

func TestPortfolioState_CloneIsDeep(t *testing.T) {
	state := domain.NewPortfolioState(500, time.Now())
	state.Positions["AAPL"] = &domain.Position{Ticker: "AAPL", Quantity: 10, AvgPrice: 100, StopLossPct: 10}

	clone := state.Clone()
	clone.Positions["AAPL"].Quantity = 1
	clone.Cash = 0
	delete(clone.Positions, "AAPL")

	require.Contains(t, state.Positions, "AAPL")
	assert.Equal(t, int64(10), state.Positions["AAPL"].Quantity)
	assert.Equal(t, 500.0, state.Cash)
}

func TestPosition_StopPrice(t *testing.T) {
	p := &domain.Position{Ticker: "AAPL", Quantity: 10, AvgPrice: 100, StopLossPct: 10}
	assert.InDelta(t, 90.0, p.StopPrice(), 1e-9)
	assert.InDelta(t, 1000.0, p.CostBasis(), 1e-9)
}
