package usecase

import (
	"fmt"

	"github.com/vitos/portfolio_sim/internal/domain"
	"gonum.org/v1/gonum/floats"
)

// PortfolioCalculator derives display metrics. It never mutates the state.
type PortfolioCalculator struct{}

func NewPortfolioCalculator() *PortfolioCalculator {
	return &PortfolioCalculator{}
}

func (c *PortfolioCalculator) Calculate(state *domain.PortfolioState, prices map[string]float64) (*domain.PortfolioMetrics, error) {
	if state == nil {
		return nil, fmt.Errorf("%w: nil portfolio state", domain.ErrValidation)
	}

	tickers := state.Tickers()
	values := make([]float64, len(tickers))
	pnls := make([]float64, len(tickers))

	for i, t := range tickers {
		price, ok := prices[t]
		if !ok {
			return nil, fmt.Errorf("%w: missing price for %s", domain.ErrValidation, t)
		}
		if !validPrice(price) {
			return nil, fmt.Errorf("%w: %w: %s priced at %v", domain.ErrValidation, domain.ErrInvalidPrice, t, price)
		}
		pos := state.Positions[t]
		values[i] = float64(pos.Quantity) * price
		pnls[i] = (price - pos.AvgPrice) * float64(pos.Quantity)
	}

	totalValue := state.Cash + floats.Sum(values)
	if totalValue <= 0 {
		return nil, fmt.Errorf("%w: %w: total value %.2f is not positive", domain.ErrValidation, domain.ErrInvalidState, totalValue)
	}

	metrics := &domain.PortfolioMetrics{
		TotalValue:        totalValue,
		Cash:              state.Cash,
		CashAllocationPct: state.Cash / totalValue * 100,
		UnrealizedPnL:     floats.Sum(pnls),
		RealizedPnL:       state.RealizedPnL,
		TotalCommissions:  state.TotalCommissions,
		Positions:         make([]domain.PositionMetrics, 0, len(tickers)),
	}

	for i, t := range tickers {
		pos := state.Positions[t]
		metrics.Positions = append(metrics.Positions, domain.PositionMetrics{
			Ticker:        t,
			Quantity:      pos.Quantity,
			AvgPrice:      pos.AvgPrice,
			MarketPrice:   prices[t],
			MarketValue:   values[i],
			UnrealizedPnL: pnls[i],
			AllocationPct: values[i] / totalValue * 100,
			StopLossPct:   pos.StopLossPct,
			StopPrice:     pos.StopPrice(),
		})
	}

	return metrics, nil
}

// CurrentAllocation expresses the holdings as a target allocation, keeping
// each position's stop-loss.
func (c *PortfolioCalculator) CurrentAllocation(state *domain.PortfolioState, prices map[string]float64) (*domain.TargetAllocation, error) {
	metrics, err := c.Calculate(state, prices)
	if err != nil {
		return nil, err
	}
	alloc := &domain.TargetAllocation{Positions: make([]domain.AllocationTarget, 0, len(metrics.Positions))}
	for _, p := range metrics.Positions {
		alloc.Positions = append(alloc.Positions, domain.AllocationTarget{
			Ticker:        p.Ticker,
			AllocationPct: p.AllocationPct,
			StopLossPct:   p.StopLossPct,
		})
	}
	return alloc, nil
}

// QuotePrices flattens quotes into a price map for Calculate.
func QuotePrices(quotes map[string]*domain.MarketQuote) map[string]float64 {
	prices := make(map[string]float64, len(quotes))
	for t, q := range quotes {
		if q != nil {
			prices[t] = q.Price
		}
	}
	return prices
}
