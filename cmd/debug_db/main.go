package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/vitos/portfolio_sim/internal/infrastructure/storage"
)

func main() {
	dbPath := flag.String("db", "portfolio.db", "SQLite file")
	portfolioID := flag.String("portfolio", "simulated_portfolio", "Portfolio ID")
	limit := flag.Int("limit", 10, "Rows per table")
	flag.Parse()

	store, err := storage.NewSQLiteStore(*dbPath, *portfolioID)
	if err != nil {
		fmt.Printf("Failed to init sqlite: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()
	state, found, err := store.LoadLatest(ctx)
	if err != nil {
		fmt.Printf("Failed to load latest snapshot: %v\n", err)
		os.Exit(1)
	}
	if !found {
		fmt.Printf("No snapshots for %s\n", *portfolioID)
		return
	}

	fmt.Printf("Latest state at %s: cash=%.2f realized=%.2f commissions=%.2f\n",
		state.Timestamp.Format("2006-01-02 15:04:05"), state.Cash, state.RealizedPnL, state.TotalCommissions)
	for _, ticker := range state.Tickers() {
		p := state.Positions[ticker]
		fmt.Printf("- %s: qty=%d avg=%.4f stop=%.2f%% (stop price %.4f)\n",
			p.Ticker, p.Quantity, p.AvgPrice, p.StopLossPct, p.StopPrice())
	}

	snaps, err := store.ListSnapshots(ctx, *limit)
	if err != nil {
		fmt.Printf("Failed to list snapshots: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nFound %d snapshots:\n", len(snaps))
	for _, s := range snaps {
		fmt.Printf("- #%d %s %-12s cash=%.2f positions=%d\n",
			s.ID, s.Timestamp.Format("2006-01-02 15:04:05"), s.Reason, s.Cash, s.Positions)
	}

	trades, err := store.ListTrades(ctx, *limit)
	if err != nil {
		fmt.Printf("Failed to list trades: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nFound %d trades:\n", len(trades))
	for _, t := range trades {
		fmt.Printf("- %s %s %-4s %d @ %.2f fee=%.2f %s\n",
			t.ExecutedAt.Format("2006-01-02 15:04:05"), t.Ticker, t.Side, t.Quantity, t.Price, t.Commission, t.Reason)
	}
}
