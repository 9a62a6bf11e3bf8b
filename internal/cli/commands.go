// Package cli is the operator command line for the simulated portfolio.
package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vitos/portfolio_sim/internal/app"
	"github.com/vitos/portfolio_sim/internal/config"
	"go.uber.org/zap"
)

type session struct {
	configPath string
	app        *app.App
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	s := &session{}

	rootCmd := &cobra.Command{
		Use:   "portfolio",
		Short: "Simulated portfolio execution",
		Long: `portfolio applies target allocations and stop-loss sweeps to a simulated
ledger stored in SQLite, pricing every fill from the configured quote source.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return s.open()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return s.close()
		},
	}

	rootCmd.PersistentFlags().StringVar(&s.configPath, "config", "config/config.yaml", "Configuration file path")

	rootCmd.AddCommand(newRebalanceCmd(s))
	rootCmd.AddCommand(newStopLossCmd(s))
	rootCmd.AddCommand(newShowCmd(s))
	rootCmd.AddCommand(newTradesCmd(s))

	return rootCmd
}

func (s *session) open() error {
	cfg, err := config.Load(s.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log, err := app.NewLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	a, err := app.New(cfg, log)
	if err != nil {
		return err
	}
	s.app = a
	return nil
}

func (s *session) close() error {
	if s.app == nil {
		return nil
	}
	_ = s.app.Logger.Sync()
	err := s.app.Close()
	s.app = nil
	return err
}

// newRebalanceCmd creates the rebalance command
func newRebalanceCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "rebalance [ALLOCATION_FILE]",
		Short: "Apply a target allocation",
		Long: `Read a YAML or JSON allocation file and trade the portfolio toward it.
Example: portfolio rebalance allocations/growth.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			alloc, err := config.LoadAllocationFile(args[0])
			if err != nil {
				return err
			}
			res, err := s.app.Cycles.RunAllocation(cmd.Context(), alloc)
			if err != nil {
				return err
			}
			s.app.Logger.Info("Rebalance finished", zap.Int("trades", len(res.Trades)))
			printTrades(cmd.OutOrStdout(), res.Trades)
			return printSnapshot(cmd.Context(), cmd, s)
		},
	}
}

// newStopLossCmd creates the stoploss command
func newStopLossCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "stoploss",
		Short: "Sell every position trading at or below its stop price",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := s.app.Cycles.RunStopLosses(cmd.Context())
			if err != nil {
				return err
			}
			printTrades(cmd.OutOrStdout(), res.Trades)
			return nil
		},
	}
}

// newShowCmd creates the show command
func newShowCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Price the portfolio at current quotes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")
			if !asJSON {
				return printSnapshot(cmd.Context(), cmd, s)
			}
			m, err := s.app.Cycles.Snapshot(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(m)
		},
	}

	cmd.Flags().Bool("json", false, "Print metrics as JSON")

	return cmd
}

// newTradesCmd creates the trades command
func newTradesCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trades",
		Short: "List recorded trades, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive")
			}
			trades, err := s.app.Store.ListTrades(cmd.Context(), limit)
			if err != nil {
				return err
			}
			printTrades(cmd.OutOrStdout(), trades)
			return nil
		},
	}

	cmd.Flags().Int("limit", 20, "Number of trades to show")

	return cmd
}

func printSnapshot(ctx context.Context, cmd *cobra.Command, s *session) error {
	m, err := s.app.Cycles.Snapshot(ctx)
	if err != nil {
		return err
	}
	printMetrics(cmd.OutOrStdout(), m)
	return nil
}
