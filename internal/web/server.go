package web

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/vitos/portfolio_sim/internal/domain"
	"github.com/vitos/portfolio_sim/internal/usecase"
	"go.uber.org/zap"
)

// Cycles is the part of usecase.CycleService the API drives.
type Cycles interface {
	RunAllocation(ctx context.Context, allocation *domain.TargetAllocation) (*usecase.ExecutionResult, error)
	RunStopLosses(ctx context.Context) (*usecase.ExecutionResult, error)
	State(ctx context.Context) (*domain.PortfolioState, error)
	Snapshot(ctx context.Context) (*domain.PortfolioMetrics, error)
	Subscribe() (<-chan []domain.Trade, func())
}

type Server struct {
	router    *http.ServeMux
	server    *http.Server
	cycles    Cycles
	tradeRepo domain.TradeRepository
	logger    *zap.Logger

	// closed on Shutdown so hijacked websocket connections end too
	done     chan struct{}
	doneOnce sync.Once
}

func NewServer(
	port int,
	cycles Cycles,
	tradeRepo domain.TradeRepository,
	logger *zap.Logger,
) *Server {
	s := &Server{
		router:    http.NewServeMux(),
		cycles:    cycles,
		tradeRepo: tradeRepo,
		logger:    logger.With(zap.String("component", "web")),
		done:      make(chan struct{}),
	}
	s.routes()
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	// Portfolio
	s.router.HandleFunc("GET /api/portfolio", s.handlePortfolio)
	s.router.HandleFunc("GET /api/portfolio/state", s.handleState)

	// Trades
	s.router.HandleFunc("GET /api/trades", s.handleTrades)
	s.router.HandleFunc("GET /ws/trades", s.handleTradeFeed)

	// Cycles
	s.router.HandleFunc("POST /api/allocation", s.handleAllocation)
	s.router.HandleFunc("POST /api/stop-losses", s.handleStopLosses)

	// Status
	s.router.HandleFunc("GET /healthz", s.handleHealth)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.doneOnce.Do(func() { close(s.done) })
	return s.server.Shutdown(ctx)
}
