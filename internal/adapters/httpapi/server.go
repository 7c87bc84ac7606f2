// Package httpapi exposes the trading operations over a small JSON HTTP API
// alongside the websocket event stream.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"hydrabot/internal/domain"
	"hydrabot/internal/ports"
)

// TradingAPI is the slice of the application service the HTTP layer needs.
type TradingAPI interface {
	IngestSignal(ctx context.Context, sig *domain.TradingSignal, userID string) (*domain.Order, error)
	CreateOrder(ctx context.Context, userID string, side domain.OrderSide, symbol string, amount float64, engine string) (*domain.Order, error)
	ExecuteOrder(ctx context.Context, orderID string) (*domain.TradeExecution, error)
	GetPortfolio(ctx context.Context, userID string) (*domain.Portfolio, error)
	GetCommissionStats(ctx context.Context) (*domain.CommissionStats, error)
	PendingReconciliations(ctx context.Context) ([]*domain.TradeExecution, error)
}

// Server serves the JSON API and the websocket event stream.
type Server struct {
	service TradingAPI
	events  http.Handler
	logger  ports.Logger
	addr    string
}

// Config holds configuration for the HTTP server.
type Config struct {
	Service TradingAPI
	// Events is the websocket hub handler, mounted at /ws. Optional.
	Events http.Handler
	Logger ports.Logger
	Addr   string
}

// NewServer creates the HTTP API server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Service == nil {
		return nil, fmt.Errorf("trading service is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for HTTP server")
	}
	if cfg.Addr == "" {
		return nil, fmt.Errorf("listen address is required: %w", ports.ErrConfigurationError)
	}
	return &Server{service: cfg.Service, events: cfg.Events, logger: cfg.Logger, addr: cfg.Addr}, nil
}

type response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type signalRequest struct {
	UserID         string  `json:"userId"`
	SignalID       string  `json:"signalId"`
	Engine         string  `json:"engine"`
	Symbol         string  `json:"symbol"`
	Type           string  `json:"type"`
	Confidence     float64 `json:"confidence"`
	Price          float64 `json:"price"`
	Reasoning      string  `json:"reasoning,omitempty"`
	ExpectedReturn float64 `json:"expectedReturn,omitempty"`
	Strength       string  `json:"strength,omitempty"`
	Timeframe      string  `json:"timeframe,omitempty"`
}

type orderRequest struct {
	UserID string  `json:"userId"`
	Side   string  `json:"side"`
	Symbol string  `json:"symbol"`
	Amount float64 `json:"amount"`
	Engine string  `json:"engine"`
}

type executeRequest struct {
	OrderID string `json:"orderId"`
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/signals", s.handleSignals)
	mux.HandleFunc("/orders", s.handleOrders)
	mux.HandleFunc("/orders/execute", s.handleExecute)
	mux.HandleFunc("/portfolio", s.handlePortfolio)
	mux.HandleFunc("/commission/stats", s.handleCommissionStats)
	mux.HandleFunc("/reconciliations", s.handleReconciliations)
	if s.events != nil {
		mux.Handle("/ws", s.events)
	}
	return mux
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "HTTP API listening", map[string]interface{}{"addr": s.addr})
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.sendSuccess(w, map[string]interface{}{"status": "healthy", "timestamp": time.Now().Unix()})
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req signalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	sig := &domain.TradingSignal{
		ID:             req.SignalID,
		Engine:         req.Engine,
		Symbol:         req.Symbol,
		Type:           domain.SignalType(req.Type),
		Confidence:     req.Confidence,
		Price:          req.Price,
		Reasoning:      req.Reasoning,
		ExpectedReturn: req.ExpectedReturn,
		Strength:       req.Strength,
		Timeframe:      req.Timeframe,
		CreatedAt:      time.Now().UTC(),
	}
	order, err := s.service.IngestSignal(r.Context(), sig, req.UserID)
	if err != nil {
		s.sendServiceError(w, r, err)
		return
	}
	if order == nil {
		s.sendSuccess(w, map[string]interface{}{"recorded": true, "autoExecuted": false})
		return
	}
	s.sendSuccess(w, order)
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	order, err := s.service.CreateOrder(r.Context(), req.UserID, domain.OrderSide(req.Side), req.Symbol, req.Amount, req.Engine)
	if err != nil {
		s.sendServiceError(w, r, err)
		return
	}
	s.sendSuccess(w, order)
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	exec, err := s.service.ExecuteOrder(r.Context(), req.OrderID)
	if err != nil {
		s.sendServiceError(w, r, err)
		return
	}
	s.sendSuccess(w, exec)
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := r.URL.Query().Get("userId")
	pf, err := s.service.GetPortfolio(r.Context(), userID)
	if err != nil {
		s.sendServiceError(w, r, err)
		return
	}
	s.sendSuccess(w, pf)
}

func (s *Server) handleCommissionStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	stats, err := s.service.GetCommissionStats(r.Context())
	if err != nil {
		s.sendServiceError(w, r, err)
		return
	}
	s.sendSuccess(w, stats)
}

func (s *Server) handleReconciliations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	execs, err := s.service.PendingReconciliations(r.Context())
	if err != nil {
		s.sendServiceError(w, r, err)
		return
	}
	s.sendSuccess(w, execs)
}

// sendServiceError maps application errors onto HTTP status codes.
func (s *Server) sendServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case isValidation(err):
		status = http.StatusBadRequest
	case errors.Is(err, ports.ErrInsufficientEligibility):
		status = http.StatusForbidden
	case errors.Is(err, ports.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ports.ErrOrderNotPending), errors.Is(err, ports.ErrOrderExpired),
		errors.Is(err, ports.ErrDuplicateEntry):
		status = http.StatusConflict
	case errors.Is(err, ports.ErrQuoteUnavailable), errors.Is(err, ports.ErrProviderUnavailable),
		errors.Is(err, ports.ErrRateLimited):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		s.logger.Error(r.Context(), err, "Request failed", map[string]interface{}{
			"path": r.URL.Path,
		})
	}
	s.sendError(w, err.Error(), status)
}

func isValidation(err error) bool {
	_, ok := ports.AsValidationError(err)
	return ok
}

func (s *Server) sendSuccess(w http.ResponseWriter, data interface{}) {
	s.writeJSON(w, http.StatusOK, response{Success: true, Data: data})
}

func (s *Server) sendError(w http.ResponseWriter, msg string, status int) {
	s.writeJSON(w, status, response{Success: false, Error: msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, resp response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error(context.Background(), err, "Failed to encode response")
	}
}
