package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/portfolio_sim/internal/domain"
)

func setup(t *testing.T) (dir, configPath string) {
	t.Helper()
	dir = t.TempDir()
	t.Chdir(dir)

	configPath = filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
execution:
  commission_per_trade: 4
  min_trade_value: 50
  starting_cash: 5000
  portfolio_id: cli_test
market_data:
  provider: static
  min_interval: 0s
  static:
    AAPL: 100
    MSFT: 50
storage:
  path: `+filepath.Join(dir, "portfolio.db")+`
logging:
  level: error
`), 0o600))
	return dir, configPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCommands_RebalanceShowTrades(t *testing.T) {
	dir, cfg := setup(t)
	allocPath := filepath.Join(dir, "alloc.yaml")
	require.NoError(t, os.WriteFile(allocPath, []byte(`
positions:
  - ticker: aapl
    allocation_pct: 50
    stop_loss_pct: 10
  - ticker: MSFT
    allocation_pct: 30
    stop_loss_pct: 15
`), 0o600))

	out, err := run(t, "--config", cfg, "rebalance", allocPath)
	require.NoError(t, err, out)
	assert.Contains(t, out, "AAPL")
	assert.Contains(t, out, "992.00")

	out, err = run(t, "--config", cfg, "show", "--json")
	require.NoError(t, err, out)
	var m domain.PortfolioMetrics
	require.NoError(t, json.Unmarshal([]byte(out), &m))
	assert.InDelta(t, 4992.0, m.TotalValue, 1e-9)
	require.Len(t, m.Positions, 2)
	assert.Equal(t, int64(25), m.Positions[0].Quantity)

	out, err = run(t, "--config", cfg, "trades", "--limit", "1")
	require.NoError(t, err, out)
	assert.Contains(t, out, "MSFT")
	assert.NotContains(t, out, "AAPL")

	out, err = run(t, "--config", cfg, "stoploss")
	require.NoError(t, err, out)
	assert.Contains(t, out, "No trades.")
}

func TestCommands_RebalanceRejectsBadAllocation(t *testing.T) {
	dir, cfg := setup(t)
	allocPath := filepath.Join(dir, "alloc.yaml")
	require.NoError(t, os.WriteFile(allocPath, []byte(`
positions:
  - ticker: AAPL
    allocation_pct: 120
`), 0o600))

	_, err := run(t, "--config", cfg, "rebalance", allocPath)
	assert.ErrorIs(t, err, domain.ErrInvalidAllocation)
}

func TestCommands_TradesLimitMustBePositive(t *testing.T) {
	_, cfg := setup(t)

	_, err := run(t, "--config", cfg, "trades", "--limit", "0")
	assert.Error(t, err)
}
