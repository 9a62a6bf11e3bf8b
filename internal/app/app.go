// Package app wires the configured components into a ready CycleService.
package app

import (
	"fmt"

	"github.com/vitos/portfolio_sim/internal/config"
	"github.com/vitos/portfolio_sim/internal/infrastructure/logger"
	"github.com/vitos/portfolio_sim/internal/infrastructure/marketdata"
	"github.com/vitos/portfolio_sim/internal/infrastructure/storage"
	"github.com/vitos/portfolio_sim/internal/usecase"
	"go.uber.org/zap"
)

type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Store    *storage.SQLiteStore
	Provider *usecase.MarketDataProvider
	Cycles   *usecase.CycleService
}

// NewLogger honours logging.file when it is set.
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Logging.File != "" {
		return logger.NewFileLogger(cfg.Logging.File, cfg.Logging.Level)
	}
	return logger.NewLogger(cfg.Logging.Level)
}

func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	// 1. Storage
	store, err := storage.NewSQLiteStore(cfg.Storage.Path, cfg.Execution.PortfolioID)
	if err != nil {
		return nil, fmt.Errorf("init sqlite: %w", err)
	}

	// 2. Market data
	source, err := marketdata.NewSource(cfg.SourceOptions())
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("init quote source: %w", err)
	}
	limiter := usecase.NewRateLimiter(cfg.MarketData.MinInterval)
	cache := usecase.NewQuoteCache(cfg.MarketData.CacheTTL)
	provider := usecase.NewMarketDataProvider(source, limiter, cache, log)
	if cfg.MarketData.PersistCache {
		provider = provider.WithStore(store)
	}

	// 3. Execution
	sim, err := usecase.NewExecutionSimulator(provider, cfg.Execution.ExecutionConfig, log)
	if err != nil {
		store.Close()
		return nil, err
	}
	cycles := usecase.NewCycleService(sim, usecase.NewPortfolioCalculator(), provider, store, cfg.Execution.StartingCash, log)

	log.Info("Components ready",
		zap.String("provider", source.Name()),
		zap.String("db", cfg.Storage.Path),
		zap.String("portfolio", cfg.Execution.PortfolioID))

	return &App{Config: cfg, Logger: log, Store: store, Provider: provider, Cycles: cycles}, nil
}

func (a *App) Close() error {
	return a.Store.Close()
}
