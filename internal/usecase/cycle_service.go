package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vitos/portfolio_sim/internal/domain"
	"go.uber.org/zap"
)

const reasonInitialState = "initial_state"

// CycleService runs one allocation or stop-loss cycle at a time against the
// persisted ledger: load, simulate, then save snapshot and trades together.
// Nothing is saved when a cycle fails.
type CycleService struct {
	simulator    *ExecutionSimulator
	calculator   *PortfolioCalculator
	quotes       domain.QuoteProvider
	repo         domain.PortfolioRepository
	startingCash float64
	logger       *zap.Logger
	mu           sync.Mutex

	subsMu      sync.Mutex
	subscribers map[chan []domain.Trade]struct{}

	timeNow func() time.Time // For testing
}

func NewCycleService(
	simulator *ExecutionSimulator,
	calculator *PortfolioCalculator,
	quotes domain.QuoteProvider,
	repo domain.PortfolioRepository,
	startingCash float64,
	logger *zap.Logger,
) *CycleService {
	return &CycleService{
		simulator:    simulator,
		calculator:   calculator,
		quotes:       quotes,
		repo:         repo,
		startingCash: startingCash,
		logger:       logger.With(zap.String("component", "cycle")),
		subscribers:  make(map[chan []domain.Trade]struct{}),
		timeNow:      time.Now,
	}
}

func (s *CycleService) RunAllocation(ctx context.Context, allocation *domain.TargetAllocation) (*ExecutionResult, error) {
	return s.run(ctx, domain.ReasonAllocation, func(state *domain.PortfolioState) (*ExecutionResult, error) {
		return s.simulator.ExecuteAllocation(ctx, allocation, state)
	})
}

func (s *CycleService) RunStopLosses(ctx context.Context) (*ExecutionResult, error) {
	return s.run(ctx, domain.ReasonStopLoss, func(state *domain.PortfolioState) (*ExecutionResult, error) {
		return s.simulator.EnforceStopLosses(ctx, state)
	})
}

func (s *CycleService) run(ctx context.Context, reason string, cycle func(*domain.PortfolioState) (*ExecutionResult, error)) (*ExecutionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.loadState(ctx)
	if err != nil {
		return nil, err
	}

	result, err := cycle(state)
	if err != nil {
		s.logger.Error("Cycle aborted", zap.String("reason", reason), zap.Error(err))
		return nil, err
	}

	if len(result.Trades) == 0 {
		s.logger.Debug("Cycle produced no trades", zap.String("reason", reason))
		return result, nil
	}

	if err := s.repo.SaveCycle(ctx, result.State, result.Trades, reason); err != nil {
		s.logger.Error("Failed to persist cycle", zap.String("reason", reason), zap.Error(err))
		return nil, fmt.Errorf("persist %s cycle: %w", reason, err)
	}

	s.logger.Info("Cycle committed",
		zap.String("reason", reason),
		zap.Int("trades", len(result.Trades)),
		zap.Float64("cash", result.State.Cash),
		zap.Float64("realized_pnl", result.State.RealizedPnL))

	s.publish(result.Trades)
	return result, nil
}

// loadState returns the latest snapshot, seeding and saving a cash-only
// ledger the first time.
func (s *CycleService) loadState(ctx context.Context) (*domain.PortfolioState, error) {
	state, found, err := s.repo.LoadLatest(ctx)
	if err != nil {
		return nil, fmt.Errorf("load portfolio state: %w", err)
	}
	if found {
		return state, nil
	}

	state = domain.NewPortfolioState(s.startingCash, s.timeNow())
	if err := s.repo.SaveCycle(ctx, state, nil, reasonInitialState); err != nil {
		return nil, fmt.Errorf("seed portfolio state: %w", err)
	}
	s.logger.Info("Seeded portfolio", zap.Float64("cash", s.startingCash))
	return state, nil
}

// State returns the latest persisted ledger.
func (s *CycleService) State(ctx context.Context) (*domain.PortfolioState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadState(ctx)
}

// Snapshot prices the latest ledger and returns its metrics.
func (s *CycleService) Snapshot(ctx context.Context) (*domain.PortfolioMetrics, error) {
	state, err := s.State(ctx)
	if err != nil {
		return nil, err
	}

	quotes, err := s.quotes.GetQuotes(ctx, state.Tickers())
	if err != nil {
		return nil, err
	}
	return s.calculator.Calculate(state, QuotePrices(quotes))
}

// Subscribe delivers every committed batch of trades. Slow subscribers miss batches.
func (s *CycleService) Subscribe() (<-chan []domain.Trade, func()) {
	ch := make(chan []domain.Trade, 16)

	s.subsMu.Lock()
	s.subscribers[ch] = struct{}{}
	s.subsMu.Unlock()

	cancel := func() {
		s.subsMu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.subsMu.Unlock()
	}
	return ch, cancel
}

func (s *CycleService) publish(trades []domain.Trade) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	for ch := range s.subscribers {
		select {
		case ch <- trades:
		default:
			s.logger.Warn("Dropping trade batch for slow subscriber")
		}
	}
}
