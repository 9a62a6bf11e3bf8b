package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vitos/portfolio_sim/internal/app"
	"github.com/vitos/portfolio_sim/internal/config"
	"github.com/vitos/portfolio_sim/internal/domain"
	"github.com/vitos/portfolio_sim/internal/scheduler"
	"github.com/vitos/portfolio_sim/internal/web"
	"go.uber.org/zap"
)

const jobTimeout = 5 * time.Minute

func main() {
	configPath := "config/config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	// 1. Load Config
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Init Logger
	log, err := app.NewLogger(cfg)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// 3. Init Storage, market data and cycle service
	a, err := app.New(cfg, log)
	if err != nil {
		log.Fatal("Failed to init components", zap.Error(err))
	}
	defer a.Close()

	// 4. Schedule cycles
	sched := scheduler.New(log, jobTimeout)
	if cfg.Schedule.StopLoss != "" {
		if err := sched.AddJob(cfg.Schedule.StopLoss, scheduler.NewStopLossJob(a.Cycles, log)); err != nil {
			log.Fatal("Failed to schedule stop-loss sweep", zap.Error(err))
		}
	}
	if cfg.Schedule.Rebalance != "" {
		if cfg.Schedule.AllocationFile == "" {
			log.Fatal("schedule.rebalance needs schedule.allocation_file")
		}
		path := cfg.Schedule.AllocationFile
		load := func() (*domain.TargetAllocation, error) { return config.LoadAllocationFile(path) }
		if err := sched.AddJob(cfg.Schedule.Rebalance, scheduler.NewRebalanceJob(a.Cycles, load, log)); err != nil {
			log.Fatal("Failed to schedule rebalance", zap.Error(err))
		}
	}
	sched.Start()

	// 5. Init Web Server
	server := web.NewServer(cfg.Server.Port, a.Cycles, a.Store, log)
	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	// 6. Wait for Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down...")
	sched.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}
}
