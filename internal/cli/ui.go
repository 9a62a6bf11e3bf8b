package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/vitos/portfolio_sim/internal/domain"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().
			Padding(0, 1)
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(mutedStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...)
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func printTrades(w io.Writer, trades []domain.Trade) {
	if len(trades) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No trades."))
		return
	}

	t := newTable("Executed", "Ticker", "Side", "Qty", "Price", "Commission", "Reason", "Notes")
	for _, tr := range trades {
		t.Row(
			tr.ExecutedAt.UTC().Format("2006-01-02 15:04:05"),
			tr.Ticker,
			string(tr.Side),
			strconv.FormatInt(tr.Quantity, 10),
			money(tr.Price),
			money(tr.Commission),
			tr.Reason,
			tr.Notes,
		)
	}
	fmt.Fprintln(w, t.Render())
}

func printMetrics(w io.Writer, m *domain.PortfolioMetrics) {
	fmt.Fprintln(w, titleStyle.Render("Portfolio"))
	fmt.Fprintf(w, "Total value:   %s\n", money(m.TotalValue))
	fmt.Fprintf(w, "Cash:          %s (%.2f%%)\n", money(m.Cash), m.CashAllocationPct)
	fmt.Fprintf(w, "Unrealized:    %s\n", money(m.UnrealizedPnL))
	fmt.Fprintf(w, "Realized:      %s\n", money(m.RealizedPnL))
	fmt.Fprintf(w, "Commissions:   %s\n", money(m.TotalCommissions))

	if len(m.Positions) == 0 {
		return
	}
	t := newTable("Ticker", "Qty", "Avg", "Price", "Value", "PnL", "Alloc %", "Stop")
	for _, p := range m.Positions {
		t.Row(
			p.Ticker,
			strconv.FormatInt(p.Quantity, 10),
			money(p.AvgPrice),
			money(p.MarketPrice),
			money(p.MarketValue),
			money(p.UnrealizedPnL),
			fmt.Sprintf("%.2f", p.AllocationPct),
			money(p.StopPrice),
		)
	}
	fmt.Fprintln(w, t.Render())
}
