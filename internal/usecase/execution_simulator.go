package usecase

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/vitos/portfolio_sim/internal/domain"
	"go.uber.org/zap"
)

type ExecutionConfig struct {
	CommissionPerTrade float64 `yaml:"commission_per_trade"`
	MinTradeValue      float64 `yaml:"min_trade_value"`
	PortfolioID        string  `yaml:"portfolio_id"`
	Strategy           string  `yaml:"strategy"`
}

func DefaultExecutionConfig() ExecutionConfig {
	return ExecutionConfig{
		CommissionPerTrade: 1.0,
		MinTradeValue:      50.0,
		PortfolioID:        "simulated_portfolio",
	}
}

// ExecutionResult is the outcome of one cycle. State is a new ledger; the
// state passed in is left untouched.
type ExecutionResult struct {
	State     *domain.PortfolioState
	Trades    []domain.Trade
	Timestamp time.Time
}

// ExecutionSimulator turns a target allocation into simulated fills.
type ExecutionSimulator struct {
	quotes  domain.QuoteProvider
	cfg     ExecutionConfig
	logger  *zap.Logger
	timeNow func() time.Time // For testing
	newID   func() string
}

func NewExecutionSimulator(quotes domain.QuoteProvider, cfg ExecutionConfig, logger *zap.Logger) (*ExecutionSimulator, error) {
	if cfg.CommissionPerTrade < 0 || math.IsNaN(cfg.CommissionPerTrade) {
		return nil, fmt.Errorf("commission per trade must be >= 0, got %v", cfg.CommissionPerTrade)
	}
	if cfg.MinTradeValue < 0 || math.IsNaN(cfg.MinTradeValue) {
		return nil, fmt.Errorf("min trade value must be >= 0, got %v", cfg.MinTradeValue)
	}
	if cfg.PortfolioID == "" {
		cfg.PortfolioID = DefaultExecutionConfig().PortfolioID
	}
	return &ExecutionSimulator{
		quotes:  quotes,
		cfg:     cfg,
		logger:  logger.With(zap.String("component", "execution")),
		timeNow: time.Now,
		newID:   uuid.NewString,
	}, nil
}

// threshold is the smallest delta worth trading; deltas must exceed it.
func (s *ExecutionSimulator) threshold() float64 {
	return s.cfg.CommissionPerTrade + s.cfg.MinTradeValue
}

// ExecuteAllocation rebalances toward the target. Every involved ticker is
// priced before anything changes, so a missing quote aborts the whole cycle.
// Sells run first to free cash for the buys.
func (s *ExecutionSimulator) ExecuteAllocation(ctx context.Context, allocation *domain.TargetAllocation, state *domain.PortfolioState) (*ExecutionResult, error) {
	if err := allocation.Validate(); err != nil {
		return nil, err
	}
	if err := state.Validate(); err != nil {
		return nil, err
	}
	allocation = allocation.Normalize()
	targets := allocation.ByTicker()

	held := state.Tickers()
	tickers := append([]string(nil), held...)
	for _, t := range allocation.Positions {
		if _, ok := state.Positions[t.Ticker]; !ok {
			tickers = append(tickers, t.Ticker)
		}
	}

	prices, err := s.fetchPrices(ctx, tickers)
	if err != nil {
		return nil, err
	}

	next := state.Clone()
	totalValue := next.Cash
	for _, t := range held {
		totalValue += float64(next.Positions[t].Quantity) * prices[t]
	}
	if totalValue <= 0 {
		return nil, fmt.Errorf("%w: total value %.2f is not positive", domain.ErrInvalidState, totalValue)
	}

	var trades []domain.Trade

	for _, ticker := range held {
		pos := next.Positions[ticker]
		price := prices[ticker]
		target, inTarget := targets[ticker]

		if !inTarget || target.AllocationPct == 0 {
			if tr, ok := s.sell(next, pos, pos.Quantity, price, domain.ReasonAllocation,
				"Position removed by allocation", map[string]any{"target_pct": 0.0}); ok {
				trades = append(trades, tr)
			}
			continue
		}

		targetValue := target.AllocationPct / 100.0 * totalValue
		delta := targetValue - float64(pos.Quantity)*price
		if delta >= 0 {
			continue
		}
		if -delta <= s.threshold() {
			s.logger.Debug("Sell delta inside dead zone", zap.String("ticker", ticker), zap.Float64("delta", delta))
			continue
		}

		qty := int64(math.Floor(-delta / price))
		if qty > pos.Quantity {
			qty = pos.Quantity
		}
		if qty <= 0 || s.belowThreshold(ticker, qty, price) {
			continue
		}
		if tr, ok := s.sell(next, pos, qty, price, domain.ReasonAllocation,
			"Partial position reduction by allocation",
			map[string]any{"target_pct": target.AllocationPct, "target_value": targetValue}); ok {
			trades = append(trades, tr)
		}
	}

	for _, target := range allocation.Positions {
		if target.AllocationPct == 0 {
			continue
		}
		ticker := target.Ticker
		price := prices[ticker]
		pos := next.Positions[ticker]

		current := 0.0
		if pos != nil {
			current = float64(pos.Quantity) * price
		}
		targetValue := target.AllocationPct / 100.0 * totalValue
		delta := targetValue - current
		if delta <= s.threshold() {
			if delta > 0 {
				s.logger.Debug("Buy delta inside dead zone", zap.String("ticker", ticker), zap.Float64("delta", delta))
			}
			continue
		}

		qty := int64(math.Floor(delta / price))
		if qty <= 0 {
			continue
		}
		if float64(qty)*price+s.cfg.CommissionPerTrade > next.Cash {
			qty = s.affordable(next.Cash, price)
			if qty <= 0 {
				s.logger.Debug("Not enough cash to buy", zap.String("ticker", ticker), zap.Float64("cash", next.Cash))
				continue
			}
		}
		if s.belowThreshold(ticker, qty, price) {
			continue
		}

		trades = append(trades, s.buy(next, pos, target, qty, price,
			map[string]any{"target_pct": target.AllocationPct, "target_value": targetValue}))
	}

	now := s.timeNow()
	next.Timestamp = now
	next.Trades = append(next.Trades, trades...)

	s.logger.Info("Allocation executed",
		zap.Int("trades", len(trades)),
		zap.Float64("total_value", totalValue),
		zap.Float64("cash", next.Cash))

	return &ExecutionResult{State: next, Trades: trades, Timestamp: now}, nil
}

// EnforceStopLosses liquidates every position trading below
// avg_price * (1 - stop_loss_pct/100). Others are left untouched.
func (s *ExecutionSimulator) EnforceStopLosses(ctx context.Context, state *domain.PortfolioState) (*ExecutionResult, error) {
	if err := state.Validate(); err != nil {
		return nil, err
	}

	held := state.Tickers()
	prices, err := s.fetchPrices(ctx, held)
	if err != nil {
		return nil, err
	}

	next := state.Clone()
	var trades []domain.Trade

	for _, ticker := range held {
		pos := next.Positions[ticker]
		price := prices[ticker]
		stopPrice := pos.StopPrice()
		if price >= stopPrice {
			continue
		}

		s.logger.Info("Stop-loss breached",
			zap.String("ticker", ticker),
			zap.Float64("price", price),
			zap.Float64("stop_price", stopPrice))

		if tr, ok := s.sell(next, pos, pos.Quantity, price, domain.ReasonStopLoss,
			fmt.Sprintf("Stop-loss triggered at %.2f", stopPrice),
			map[string]any{"stop_price": stopPrice, "stop_loss_pct": pos.StopLossPct}); ok {
			trades = append(trades, tr)
		}
	}

	now := s.timeNow()
	next.Timestamp = now
	next.Trades = append(next.Trades, trades...)

	return &ExecutionResult{State: next, Trades: trades, Timestamp: now}, nil
}

func (s *ExecutionSimulator) fetchPrices(ctx context.Context, tickers []string) (map[string]float64, error) {
	prices := make(map[string]float64, len(tickers))
	if len(tickers) == 0 {
		return prices, nil
	}

	quotes, err := s.quotes.GetQuotes(ctx, tickers)
	if err != nil {
		return nil, err
	}
	for _, t := range tickers {
		q, ok := quotes[t]
		if !ok || q == nil {
			return nil, fmt.Errorf("%w: no quote for %s", domain.ErrDataUnavailable, t)
		}
		if !validPrice(q.Price) {
			return nil, fmt.Errorf("%w: %w: %s quoted at %v", domain.ErrDataUnavailable, domain.ErrInvalidPrice, t, q.Price)
		}
		prices[t] = q.Price
	}
	return prices, nil
}

// belowThreshold reports whether a whole-share fill rounded down under the
// threshold. Forced liquidations do not go through it.
func (s *ExecutionSimulator) belowThreshold(ticker string, qty int64, price float64) bool {
	notional := float64(qty) * price
	if notional >= s.threshold() {
		return false
	}
	s.logger.Debug("Fill notional below threshold",
		zap.String("ticker", ticker),
		zap.Int64("quantity", qty),
		zap.Float64("notional", notional))
	return true
}

// affordable is the largest quantity whose cost plus commission fits in cash.
func (s *ExecutionSimulator) affordable(cash, price float64) int64 {
	qty := int64(math.Floor((cash - s.cfg.CommissionPerTrade) / price))
	for qty > 0 && float64(qty)*price+s.cfg.CommissionPerTrade > cash {
		qty--
	}
	return qty
}

// sell books a fill against the ledger. It refuses a sale whose proceeds
// cannot cover the commission out of available cash.
func (s *ExecutionSimulator) sell(state *domain.PortfolioState, pos *domain.Position, qty int64, price float64, reason, notes string, meta map[string]any) (domain.Trade, bool) {
	commission := s.cfg.CommissionPerTrade
	proceeds := float64(qty) * price
	if state.Cash+proceeds-commission < 0 {
		s.logger.Warn("Sell skipped, proceeds do not cover commission",
			zap.String("ticker", pos.Ticker),
			zap.Int64("quantity", qty),
			zap.Float64("proceeds", proceeds))
		return domain.Trade{}, false
	}

	state.Cash += proceeds - commission
	state.RealizedPnL += (price-pos.AvgPrice)*float64(qty) - commission
	state.TotalCommissions += commission

	pos.Quantity -= qty
	if pos.Quantity == 0 {
		delete(state.Positions, pos.Ticker)
	}

	return s.record(pos.Ticker, domain.SideSell, qty, price, reason, notes, meta), true
}

func (s *ExecutionSimulator) buy(state *domain.PortfolioState, pos *domain.Position, target domain.AllocationTarget, qty int64, price float64, meta map[string]any) domain.Trade {
	commission := s.cfg.CommissionPerTrade
	cost := float64(qty) * price

	state.Cash -= cost + commission
	state.TotalCommissions += commission

	if pos != nil {
		total := pos.CostBasis() + cost + commission
		pos.Quantity += qty
		pos.AvgPrice = total / float64(pos.Quantity)
	} else {
		state.Positions[target.Ticker] = &domain.Position{
			Ticker:      target.Ticker,
			Quantity:    qty,
			AvgPrice:    (cost + commission) / float64(qty),
			StopLossPct: target.StopLossPct,
		}
	}

	return s.record(target.Ticker, domain.SideBuy, qty, price, domain.ReasonAllocation, "Position increased by allocation", meta)
}

func (s *ExecutionSimulator) record(ticker string, side domain.Side, qty int64, price float64, reason, notes string, meta map[string]any) domain.Trade {
	tr := domain.Trade{
		ID:          s.newID(),
		PortfolioID: s.cfg.PortfolioID,
		ExecutedAt:  s.timeNow(),
		Ticker:      ticker,
		Side:        side,
		Quantity:    qty,
		Price:       price,
		Commission:  s.cfg.CommissionPerTrade,
		Strategy:    s.cfg.Strategy,
		Reason:      reason,
		Notes:       notes,
		Metadata:    meta,
	}
	s.logger.Info("Simulated trade",
		zap.String("ticker", ticker),
		zap.String("side", string(side)),
		zap.Int64("quantity", qty),
		zap.Float64("price", price),
		zap.String("reason", reason))
	return tr
}
