package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/portfolio_sim/internal/domain"
	"github.com/vitos/portfolio_sim/internal/usecase"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type MockRunner struct {
	Trades      []domain.Trade
	Err         error
	StopCalls   int
	Allocations []*domain.TargetAllocation
	Deadline    bool
}

func (m *MockRunner) RunStopLosses(ctx context.Context) (*usecase.ExecutionResult, error) {
	m.StopCalls++
	_, m.Deadline = ctx.Deadline()
	if m.Err != nil {
		return nil, m.Err
	}
	return &usecase.ExecutionResult{Trades: m.Trades}, nil
}

func (m *MockRunner) RunAllocation(ctx context.Context, alloc *domain.TargetAllocation) (*usecase.ExecutionResult, error) {
	m.Allocations = append(m.Allocations, alloc)
	if m.Err != nil {
		return nil, m.Err
	}
	return &usecase.ExecutionResult{Trades: m.Trades}, nil
}

func TestScheduler_AddJobRejectsBadSpec(t *testing.T) {
	s := New(zap.NewNop(), 0)
	err := s.AddJob("every tuesday", NewStopLossJob(&MockRunner{}, zap.NewNop()))
	assert.Error(t, err)

	require.NoError(t, s.AddJob("*/15 9-16 * * MON-FRI", NewStopLossJob(&MockRunner{}, zap.NewNop())))
	require.NoError(t, s.AddJob("@every 30s", NewStopLossJob(&MockRunner{}, zap.NewNop())))
}

func TestScheduler_WrapLogsFailureAndAppliesTimeout(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	s := New(zap.New(core), time.Minute)
	runner := &MockRunner{Err: domain.ErrDataUnavailable}

	s.wrap(NewStopLossJob(runner, zap.NewNop()))()

	assert.Equal(t, 1, runner.StopCalls)
	assert.True(t, runner.Deadline)
	failed := logs.FilterMessage("Job failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, "stop_loss", failed[0].ContextMap()["job"])
}

func TestScheduler_RunsOnSchedule(t *testing.T) {
	s := New(zap.NewNop(), 0)
	done := make(chan struct{}, 1)
	require.NoError(t, s.AddJob("@every 1s", jobFunc(func(ctx context.Context) error {
		select {
		case done <- struct{}{}:
		default:
		}
		return nil
	})))

	s.Start()
	defer s.Stop()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("job never ran")
	}
}

type jobFunc func(ctx context.Context) error

func (f jobFunc) Run(ctx context.Context) error { return f(ctx) }
func (f jobFunc) Name() string                  { return "func" }

func TestRebalanceJob(t *testing.T) {
	alloc := &domain.TargetAllocation{Positions: []domain.AllocationTarget{{Ticker: "AAPL", AllocationPct: 50}}}
	runner := &MockRunner{}
	job := NewRebalanceJob(runner, func() (*domain.TargetAllocation, error) { return alloc, nil }, zap.NewNop())

	require.NoError(t, New(zap.NewNop(), 0).RunNow(context.Background(), job))
	assert.Equal(t, []*domain.TargetAllocation{alloc}, runner.Allocations)

	bad := NewRebalanceJob(runner, func() (*domain.TargetAllocation, error) {
		return nil, domain.ErrInvalidAllocation
	}, zap.NewNop())
	err := bad.Run(context.Background())
	assert.ErrorIs(t, err, domain.ErrInvalidAllocation)
	assert.Len(t, runner.Allocations, 1)
}

func TestStopLossJob_PropagatesError(t *testing.T) {
	boom := errors.New("db locked")
	err := NewStopLossJob(&MockRunner{Err: boom}, zap.NewNop()).Run(context.Background())
	assert.ErrorIs(t, err, boom)
}
