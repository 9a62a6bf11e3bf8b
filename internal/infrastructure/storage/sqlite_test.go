package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/portfolio_sim/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "portfolio.db"), "test_portfolio")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

var ts = time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)

func TestSQLiteStore_LoadLatestEmpty(t *testing.T) {
	store := newTestStore(t)

	state, found, err := store.LoadLatest(context.Background())
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, state)
}

func TestSQLiteStore_SaveCycleRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seed := domain.NewPortfolioState(5000, ts)
	require.NoError(t, store.SaveCycle(ctx, seed, nil, "initial_state"))

	state := domain.NewPortfolioState(992, ts.Add(time.Minute))
	state.Positions["AAPL"] = &domain.Position{Ticker: "AAPL", Quantity: 25, AvgPrice: 100.16, StopLossPct: 10}
	state.Positions["MSFT"] = &domain.Position{Ticker: "MSFT", Quantity: 30, AvgPrice: 50.1333, StopLossPct: 15}
	state.RealizedPnL = -4
	state.TotalCommissions = 8

	trades := []domain.Trade{
		{ID: "t-1", PortfolioID: "test_portfolio", ExecutedAt: ts, Ticker: "AAPL", Side: domain.SideBuy,
			Quantity: 25, Price: 100, Commission: 4, Reason: domain.ReasonAllocation,
			Metadata: map[string]any{"target_pct": 50.0}},
		{ID: "t-2", ExecutedAt: ts, Ticker: "MSFT", Side: domain.SideBuy,
			Quantity: 30, Price: 50, Commission: 4, Reason: domain.ReasonAllocation, Notes: "Position increased by allocation"},
	}
	require.NoError(t, store.SaveCycle(ctx, state, trades, domain.ReasonAllocation))

	loaded, found, err := store.LoadLatest(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 992.0, loaded.Cash)
	assert.Equal(t, -4.0, loaded.RealizedPnL)
	assert.Equal(t, 8.0, loaded.TotalCommissions)
	assert.True(t, loaded.Timestamp.Equal(ts.Add(time.Minute)))
	require.Len(t, loaded.Positions, 2)
	assert.Equal(t, *state.Positions["AAPL"], *loaded.Positions["AAPL"])
	assert.Empty(t, loaded.Trades)

	listed, err := store.ListTrades(ctx, 10)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "t-2", listed[0].ID, "newest first")
	assert.Equal(t, "test_portfolio", listed[0].PortfolioID)
	assert.Equal(t, "Position increased by allocation", listed[0].Notes)
	assert.Nil(t, listed[0].Metadata)
	assert.Equal(t, domain.SideBuy, listed[1].Side)
	assert.Equal(t, int64(25), listed[1].Quantity)
	assert.Equal(t, 50.0, listed[1].Metadata["target_pct"])

	snaps, err := store.ListSnapshots(ctx, 10)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, domain.ReasonAllocation, snaps[0].Reason)
	assert.Equal(t, 2, snaps[0].Positions)
	assert.Equal(t, "initial_state", snaps[1].Reason)
}

func TestSQLiteStore_SaveCycleIsAtomic(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveCycle(ctx, domain.NewPortfolioState(1000, ts), nil, "initial_state"))

	next := domain.NewPortfolioState(500, ts)
	dup := domain.Trade{ID: "same", ExecutedAt: ts, Ticker: "AAPL", Side: domain.SideBuy, Quantity: 1, Price: 1}
	err := store.SaveCycle(ctx, next, []domain.Trade{dup, dup}, domain.ReasonAllocation)
	require.Error(t, err)

	loaded, _, err := store.LoadLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, loaded.Cash, "failed cycle leaves the previous snapshot current")

	trades, err := store.ListTrades(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestSQLiteStore_SaveCycleRejectsInvalidState(t *testing.T) {
	store := newTestStore(t)

	state := domain.NewPortfolioState(-1, ts)
	err := store.SaveCycle(context.Background(), state, nil, "initial_state")
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestSQLiteStore_PortfoliosAreIsolated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.db")
	a, err := NewSQLiteStore(path, "a")
	require.NoError(t, err)
	defer a.Close()
	b, err := NewSQLiteStore(path, "b")
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, a.SaveCycle(context.Background(), domain.NewPortfolioState(100, ts), nil, "initial_state"))

	_, found, err := b.LoadLatest(context.Background())
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSQLiteStore_MarketPrices(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, found, err := store.LoadPrice(ctx, "AAPL")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.StorePrice(ctx, &domain.MarketQuote{Ticker: "AAPL", Price: 190, Timestamp: ts, Source: "yahoo"}))
	require.NoError(t, store.StorePrice(ctx, &domain.MarketQuote{Ticker: "AAPL", Price: 191.5, Timestamp: ts.Add(time.Hour), Source: "yahoo"}))

	q, found, err := store.LoadPrice(ctx, "AAPL")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 191.5, q.Price)
	assert.Equal(t, "yahoo", q.Source)
	assert.True(t, q.Timestamp.Equal(ts.Add(time.Hour)))
}
