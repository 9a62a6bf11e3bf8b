package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/vitos/portfolio_sim/internal/config"
	"github.com/vitos/portfolio_sim/internal/domain"
	"github.com/vitos/portfolio_sim/internal/usecase"
	"go.uber.org/zap"
)

const (
	defaultTradeLimit = 50
	maxTradeLimit     = 500
	maxBodyBytes      = 1 << 20
)

type cycleResponse struct {
	Timestamp time.Time              `json:"timestamp"`
	Trades    []domain.Trade         `json:"trades"`
	State     *domain.PortfolioState `json:"state"`
}

func newCycleResponse(res *usecase.ExecutionResult) cycleResponse {
	trades := res.Trades
	if trades == nil {
		trades = []domain.Trade{}
	}
	return cycleResponse{Timestamp: res.Timestamp, Trades: trades, State: res.State}
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	metrics, err := s.cycles.Snapshot(r.Context())
	if err != nil {
		s.writeError(w, "Failed to price portfolio", err)
		return
	}
	s.writeJSON(w, http.StatusOK, metrics)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	state, err := s.cycles.State(r.Context())
	if err != nil {
		s.writeError(w, "Failed to load portfolio", err)
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	limit := defaultTradeLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxTradeLimit)
	}

	trades, err := s.tradeRepo.ListTrades(r.Context(), limit)
	if err != nil {
		s.writeError(w, "Failed to list trades", err)
		return
	}
	if trades == nil {
		trades = []domain.Trade{}
	}
	s.writeJSON(w, http.StatusOK, trades)
}

func (s *Server) handleAllocation(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	alloc, err := config.ParseAllocation(body)
	if err != nil {
		s.writeError(w, "Invalid allocation", err)
		return
	}

	res, err := s.cycles.RunAllocation(r.Context(), alloc)
	if err != nil {
		s.writeError(w, "Allocation cycle failed", err)
		return
	}
	s.writeJSON(w, http.StatusOK, newCycleResponse(res))
}

func (s *Server) handleStopLosses(w http.ResponseWriter, r *http.Request) {
	res, err := s.cycles.RunStopLosses(r.Context())
	if err != nil {
		s.writeError(w, "Stop-loss cycle failed", err)
		return
	}
	s.writeJSON(w, http.StatusOK, newCycleResponse(res))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidAllocation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrDataUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, domain.ErrValidation):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(msg, zap.Error(err))
	} else {
		s.logger.Warn(msg, zap.Error(err))
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}
