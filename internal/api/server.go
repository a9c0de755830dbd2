package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"tradesim/internal/domain"
	"tradesim/internal/portfolio"
	"tradesim/internal/quotes"
	"tradesim/internal/trading"
)

// Server is a lightweight HTTP API over the trading engine, snapshot
// builder and quote cache.
type Server struct {
	httpServer *http.Server
	engine     *trading.Engine
	builder    *portfolio.Builder
	quotes     *quotes.Cache
	logger     *log.Logger
	startedAt  time.Time
}

// NewServer creates a new API server bound to addr.
func NewServer(addr string, engine *trading.Engine, builder *portfolio.Builder, cache *quotes.Cache, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	s := &Server{
		engine:    engine,
		builder:   builder,
		quotes:    cache,
		logger:    logger,
		startedAt: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/quote", s.handleQuote)
	mux.HandleFunc("/api/portfolio", s.handlePortfolio)
	mux.HandleFunc("/api/cash", s.handleCash)
	mux.HandleFunc("/api/trade", s.handleTrade)
	mux.HandleFunc("/api/cash-movement", s.handleCashMovement)
	mux.HandleFunc("/api/history", s.handleHistory)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the underlying HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins serving HTTP requests.
func (s *Server) Start(_ context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	s.logger.Printf("api server listening on %s", s.httpServer.Addr)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("api server: %v", err)
		}
	}()
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Printf("encode response: %v", err)
	}
}

// errorResponse is the uniform error body. Reason is set for trade and
// cash-movement rejections so clients can branch without parsing Error.
type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// writeError maps domain errors onto HTTP statuses: typed rejections are
// client errors, everything else is a 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var rej trading.Rejection
	if errors.As(err, &rej) {
		status := http.StatusUnprocessableEntity
		if rej.RejectionReason() == trading.ReasonInvalidInput {
			status = http.StatusBadRequest
		}
		s.writeJSON(w, status, errorResponse{Error: rej.Error(), Reason: rej.RejectionReason()})
		return
	}
	s.logger.Printf("internal error: %v", err)
	s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
}

// GET /api/health — liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":       true,
		"uptime_s": time.Since(s.startedAt).Seconds(),
	})
}

type quoteEntry struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	PercentChange float64 `json:"percent_change"`
	DayHigh       float64 `json:"day_high"`
	DayLow        float64 `json:"day_low"`
	AsOf          int64   `json:"as_of"`
	FromCache     bool    `json:"from_cache"`
	Stale         bool    `json:"stale"`
	Error         string  `json:"error,omitempty"`
}

func toQuoteEntry(q domain.Quote) quoteEntry {
	return quoteEntry{
		Symbol:        q.Symbol,
		Price:         q.Price,
		PercentChange: q.PercentChange,
		DayHigh:       q.DayHigh,
		DayLow:        q.DayLow,
		AsOf:          q.AsOf,
		FromCache:     q.FromCache,
		Stale:         q.Stale,
		Error:         q.Error,
	}
}

// GET /api/quote?symbols=AAPL,MSFT — quotes for one or more symbols.
// Per-symbol failures come back as entries with the error field set.
func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	raw := r.URL.Query().Get("symbols")
	if raw == "" {
		raw = r.URL.Query().Get("symbol")
	}
	var symbols []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			symbols = append(symbols, part)
		}
	}
	if len(symbols) == 0 {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "symbols query parameter is required"})
		return
	}

	result := s.quotes.Quotes(r.Context(), symbols)
	entries := make([]quoteEntry, 0, len(result))
	for _, q := range result {
		entries = append(entries, toQuoteEntry(q))
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"quotes": entries})
}

type holdingEntry struct {
	Symbol        string  `json:"symbol"`
	Shares        float64 `json:"shares"`
	AvgCost       float64 `json:"avg_cost"`
	MarketPrice   float64 `json:"market_price"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	Value         float64 `json:"value"`
	LivePrice     bool    `json:"live_price"`
	Stale         bool    `json:"stale"`
}

// GET /api/portfolio?user_id=u1 — full portfolio snapshot.
func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "user_id query parameter is required"})
		return
	}

	snap, err := s.builder.Snapshot(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	holdings := make([]holdingEntry, 0, len(snap.Holdings))
	for _, h := range snap.Holdings {
		holdings = append(holdings, holdingEntry{
			Symbol:        h.Symbol,
			Shares:        h.Shares,
			AvgCost:       h.AvgCost,
			MarketPrice:   h.MarketPrice,
			UnrealizedPnL: h.UnrealizedPnL,
			Value:         h.Value,
			LivePrice:     h.LivePrice,
			Stale:         h.Stale,
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":           snap.UserID,
		"holdings":          holdings,
		"total_value":       snap.TotalValue,
		"total_profit_loss": snap.TotalProfitLoss,
		"available_cash":    snap.AvailableCash,
		"net_worth":         snap.NetWorth,
		"as_of":             snap.AsOf,
	})
}

// GET /api/cash?user_id=u1 — cash balance breakdown.
func (s *Server) handleCash(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "user_id query parameter is required"})
		return
	}

	bal, err := s.engine.CashBalance(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":        userID,
		"deposits":       bal.Deposits,
		"withdrawals":    bal.Withdrawals,
		"buy_cost":       bal.BuyCost,
		"sell_proceeds":  bal.SellProceeds,
		"available_cash": bal.AvailableCash,
	})
}

type tradeRequest struct {
	UserID   string  `json:"user_id"`
	Symbol   string  `json:"symbol"`
	Side     string  `json:"side"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
}

type tradeEntry struct {
	ID        string  `json:"id"`
	UserID    string  `json:"user_id"`
	Symbol    string  `json:"symbol"`
	Side      string  `json:"side"`
	Quantity  float64 `json:"quantity"`
	Price     float64 `json:"price"`
	Status    string  `json:"status"`
	CreatedAt int64   `json:"created_at"`
}

func toTradeEntry(t *domain.Trade) tradeEntry {
	return tradeEntry{
		ID:        t.ID,
		UserID:    t.UserID,
		Symbol:    t.Symbol,
		Side:      string(t.Side),
		Quantity:  t.Quantity,
		Price:     t.Price,
		Status:    t.Status,
		CreatedAt: t.CreatedAt,
	}
}

// POST /api/trade — validate and record a trade.
func (s *Server) handleTrade(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	trade, err := s.engine.ValidateAndRecordTrade(r.Context(), req.UserID, req.Symbol, domain.Side(strings.ToUpper(req.Side)), req.Quantity, req.Price)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]interface{}{"trade": toTradeEntry(trade)})
}

type cashMovementRequest struct {
	UserID string  `json:"user_id"`
	Kind   string  `json:"kind"`
	Amount float64 `json:"amount"`
}

// POST /api/cash-movement — record a deposit or withdrawal.
func (s *Server) handleCashMovement(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req cashMovementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	m, err := s.engine.RecordCashMovement(r.Context(), req.UserID, domain.MovementKind(strings.ToUpper(req.Kind)), req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"movement": map[string]interface{}{
			"id":         m.ID,
			"user_id":    m.UserID,
			"kind":       string(m.Kind),
			"amount":     m.Amount,
			"created_at": m.CreatedAt,
		},
	})
}

// GET /api/history?user_id=u1 — all trades for a user, oldest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "user_id query parameter is required"})
		return
	}

	trades, err := s.engine.TradeHistory(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	entries := make([]tradeEntry, 0, len(trades))
	for _, t := range trades {
		entries = append(entries, toTradeEntry(t))
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"trades": entries})
}
