package scheduler

import (
	"context"
	"fmt"

	"github.com/vitos/portfolio_sim/internal/domain"
	"github.com/vitos/portfolio_sim/internal/usecase"
	"go.uber.org/zap"
)

type StopLossRunner interface {
	RunStopLosses(ctx context.Context) (*usecase.ExecutionResult, error)
}

type AllocationRunner interface {
	RunAllocation(ctx context.Context, allocation *domain.TargetAllocation) (*usecase.ExecutionResult, error)
}

// StopLossJob sweeps open positions for breached stops.
type StopLossJob struct {
	runner StopLossRunner
	log    *zap.Logger
}

func NewStopLossJob(runner StopLossRunner, log *zap.Logger) *StopLossJob {
	return &StopLossJob{runner: runner, log: log.With(zap.String("job", "stop_loss"))}
}

func (j *StopLossJob) Name() string { return "stop_loss" }

func (j *StopLossJob) Run(ctx context.Context) error {
	res, err := j.runner.RunStopLosses(ctx)
	if err != nil {
		return err
	}
	if len(res.Trades) > 0 {
		j.log.Info("Stop-losses triggered", zap.Int("trades", len(res.Trades)))
	}
	return nil
}

// RebalanceJob re-reads the allocation on every run and executes it, so
// edits to the allocation file are picked up without a restart.
type RebalanceJob struct {
	runner AllocationRunner
	load   func() (*domain.TargetAllocation, error)
	log    *zap.Logger
}

func NewRebalanceJob(runner AllocationRunner, load func() (*domain.TargetAllocation, error), log *zap.Logger) *RebalanceJob {
	return &RebalanceJob{runner: runner, load: load, log: log.With(zap.String("job", "rebalance"))}
}

func (j *RebalanceJob) Name() string { return "rebalance" }

func (j *RebalanceJob) Run(ctx context.Context) error {
	alloc, err := j.load()
	if err != nil {
		return fmt.Errorf("load allocation: %w", err)
	}
	res, err := j.runner.RunAllocation(ctx, alloc)
	if err != nil {
		return err
	}
	j.log.Info("Rebalance finished", zap.Int("trades", len(res.Trades)))
	return nil
}
