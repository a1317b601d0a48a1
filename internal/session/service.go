package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/andrednh6/tradingschool/internal/ledger"
	"github.com/andrednh6/tradingschool/internal/metrics"
	"github.com/andrednh6/tradingschool/internal/model"
	"github.com/andrednh6/tradingschool/internal/store"
)

// Service exposes the session engine over HTTP. Uses a mutex for
// serialized action dispatch (single-instance): the engine assumes at
// most one in-flight mutation per session at a time.
type Service struct {
	store    store.Store
	engine   *Engine
	notifier Notifier
	mu       sync.Mutex
	wsHub    *WSHub // optional WebSocket hub for real-time broadcasts
}

// NewService creates a session service. Pass nil for hub if WebSocket
// broadcasting is not needed; a nil notifier falls back to slog.
func NewService(st store.Store, engine *Engine, notifier Notifier, hub *WSHub) *Service {
	if notifier == nil {
		notifier = SlogNotifier{}
	}
	return &Service{
		store:    st,
		engine:   engine,
		notifier: notifier,
		wsHub:    hub,
	}
}

// --- Request/Response types ---

// StartSessionRequest is the JSON body for session creation.
type StartSessionRequest struct {
	InitialCash decimal.Decimal `json:"initial_cash"` // 0 → default
}

// TradeRequest is the JSON body for POST .../buy and .../sell.
type TradeRequest struct {
	Symbol   string          `json:"symbol"`
	Quantity decimal.Decimal `json:"quantity"` // positive whole number of shares
}

// TradeResponse is the JSON body returned from buy/sell.
type TradeResponse struct {
	Transaction *model.Transaction `json:"transaction"`
	Session     *model.Session     `json:"session"`
}

// --- HTTP Handlers ---

// StartSession handles POST /api/v1/sessions/{userID}
// Creates a fresh session, replacing any existing one.
func (s *Service) StartSession(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.engine.Start(req.InitialCash)
	s.persist(r.Context(), userID, sess)
	metrics.SessionsStarted.Inc()

	slog.Info("session started",
		"user", userID,
		"cash", sess.Cash.String(),
		"instruments", len(sess.MarketTickers),
	)
	s.notifier.Notify(userID, "New guided session started. Good luck!")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(sess)
}

// GetSession handles GET /api/v1/sessions/{userID}
func (s *Service) GetSession(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	sess, err := s.loadSession(r, userID)
	if err != nil {
		writeError(w, "session not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sess)
}

// ResetSession handles DELETE /api/v1/sessions/{userID}
// Discards the session entirely; a new one must be started explicitly.
func (s *Service) ResetSession(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.DeleteSession(r.Context(), userID); err != nil {
		writeError(w, "failed to reset session", http.StatusInternalServerError)
		return
	}

	slog.Info("session reset", "user", userID)
	w.WriteHeader(http.StatusNoContent)
}

// Buy handles POST /api/v1/sessions/{userID}/buy
func (s *Service) Buy(w http.ResponseWriter, r *http.Request) {
	s.handleTrade(w, r, model.TransactionBuy)
}

// Sell handles POST /api/v1/sessions/{userID}/sell
func (s *Service) Sell(w http.ResponseWriter, r *http.Request) {
	s.handleTrade(w, r, model.TransactionSell)
}

func (s *Service) handleTrade(w http.ResponseWriter, r *http.Request, typ string) {
	userID := chi.URLParam(r, "userID")

	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Symbol == "" {
		writeError(w, "symbol is required", http.StatusBadRequest)
		return
	}
	if !req.Quantity.IsInteger() || req.Quantity.LessThanOrEqual(decimal.Zero) {
		s.reject(userID, ledger.ErrInvalidQuantity)
		writeError(w, ledger.ErrInvalidQuantity.Error(), http.StatusBadRequest)
		return
	}
	quantity := req.Quantity.IntPart()

	// Serialize action dispatch.
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.loadSession(r, userID)
	if err != nil {
		s.reject(userID, ledger.ErrNoActiveSession)
		writeError(w, "no active session", http.StatusNotFound)
		return
	}

	var next *model.Session
	var tx *model.Transaction
	var notices []string
	if typ == model.TransactionBuy {
		next, tx, notices, err = s.engine.Buy(sess, req.Symbol, quantity, time.Now().UTC())
	} else {
		next, tx, notices, err = s.engine.Sell(sess, req.Symbol, quantity, time.Now().UTC())
	}
	if err != nil {
		s.reject(userID, err)
		writeError(w, err.Error(), rejectionStatus(err))
		return
	}

	s.persist(r.Context(), userID, next)
	s.announce(userID, notices)
	metrics.TradesTotal.WithLabelValues(typ).Inc()
	s.trackProgress(userID, sess, next)

	slog.Info("trade executed",
		"trade_id", tx.ID,
		"user", userID,
		"type", typ,
		"symbol", tx.Symbol,
		"qty", tx.Quantity,
		"price", tx.Price.String(),
		"cash", next.Cash.String(),
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:     "trade_executed",
			UserID:   userID,
			Level:    next.CurrentLevel,
			Symbol:   tx.Symbol,
			Quantity: tx.Quantity,
			Price:    tx.Price.String(),
			Cash:     next.Cash.String(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(TradeResponse{Transaction: tx, Session: next})
}

// AdvanceWeek handles POST /api/v1/sessions/{userID}/advance-week
func (s *Service) AdvanceWeek(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.loadSession(r, userID)
	if err != nil {
		s.reject(userID, ledger.ErrNoActiveSession)
		writeError(w, "no active session", http.StatusNotFound)
		return
	}

	next, notices, err := s.engine.AdvanceWeek(sess)
	if err != nil {
		s.reject(userID, err)
		writeError(w, err.Error(), rejectionStatus(err))
		return
	}

	s.persist(r.Context(), userID, next)
	s.announce(userID, notices)
	metrics.WeeksAdvanced.Inc()
	s.trackProgress(userID, sess, next)

	slog.Info("week advanced",
		"user", userID,
		"week", next.SimulatedWeeksPassed,
		"events", len(next.ActiveMarketEvents),
		"active", next.IsActive,
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:   "week_advanced",
			UserID: userID,
			Level:  next.CurrentLevel,
			Week:   next.SimulatedWeeksPassed,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(next)
}

// CompleteTheory handles POST /api/v1/sessions/{userID}/complete-theory
func (s *Service) CompleteTheory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.loadSession(r, userID)
	if err != nil {
		s.reject(userID, ledger.ErrNoActiveSession)
		writeError(w, "no active session", http.StatusNotFound)
		return
	}

	next, notices, err := s.engine.CompleteTheory(sess)
	if err != nil {
		s.reject(userID, err)
		writeError(w, err.Error(), rejectionStatus(err))
		return
	}

	s.persist(r.Context(), userID, next)
	s.announce(userID, notices)
	s.trackProgress(userID, sess, next)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(next)
}

// GetTickers handles GET /api/v1/sessions/{userID}/tickers
func (s *Service) GetTickers(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	sess, err := s.loadSession(r, userID)
	if err != nil {
		writeError(w, "session not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sess.MarketTickers)
}

// GetTransactions handles GET /api/v1/sessions/{userID}/transactions
// Supports ?type=buy|sell; history is only ever filtered, never edited.
func (s *Service) GetTransactions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	sess, err := s.loadSession(r, userID)
	if err != nil {
		writeError(w, "session not found", http.StatusNotFound)
		return
	}

	typ := r.URL.Query().Get("type")
	if typ != "" && typ != model.TransactionBuy && typ != model.TransactionSell {
		writeError(w, "type must be buy or sell", http.StatusBadRequest)
		return
	}

	transactions := make([]model.Transaction, 0, len(sess.Transactions))
	for _, tx := range sess.Transactions {
		if typ == "" || tx.Type == typ {
			transactions = append(transactions, tx)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(transactions)
}

// --- Helpers ---

// loadSession reads and normalizes the user's snapshot.
func (s *Service) loadSession(r *http.Request, userID string) (*model.Session, error) {
	sess, err := s.store.LoadSession(r.Context(), userID)
	if err != nil {
		return nil, err
	}
	return s.engine.Normalize(sess), nil
}

// persist saves the snapshot after a successful transition. Persistence is
// fire-and-forget: a failed save is logged but never rolls back the
// transition, since the returned snapshot is the source of truth.
func (s *Service) persist(ctx context.Context, userID string, sess *model.Session) {
	if err := s.store.SaveSession(ctx, userID, sess); err != nil {
		slog.Warn("session save failed", "user", userID, "err", err)
	}
}

// announce routes transition notices to the notification sink.
func (s *Service) announce(userID string, notices []string) {
	for _, msg := range notices {
		s.notifier.Notify(userID, msg)
	}
}

// trackProgress records level-up and termination metrics by comparing the
// snapshots around a transition, and broadcasts the corresponding events.
func (s *Service) trackProgress(userID string, before, after *model.Session) {
	if after.CurrentLevel > before.CurrentLevel {
		metrics.LevelUps.Inc()
		if s.wsHub != nil {
			s.wsHub.Broadcast(WSMessage{
				Type:   "level_up",
				UserID: userID,
				Level:  after.CurrentLevel,
			})
		}
	}

	if before.IsActive && !after.IsActive {
		cause := "completed"
		switch {
		case after.SimulatedWeeksPassed >= s.engine.MaxWeeks():
			cause = "horizon"
		case after.TotalValue().LessThanOrEqual(decimal.Zero):
			cause = "bankruptcy"
		}
		metrics.SessionsEnded.WithLabelValues(cause).Inc()
		if s.wsHub != nil {
			s.wsHub.Broadcast(WSMessage{
				Type:    "session_ended",
				UserID:  userID,
				Level:   after.CurrentLevel,
				Week:    after.SimulatedWeeksPassed,
				Message: cause,
			})
		}
	}
}

// reject surfaces a rejection to the notification sink and metrics.
func (s *Service) reject(userID string, err error) {
	metrics.RejectionsTotal.WithLabelValues(rejectionReason(err)).Inc()
	s.notifier.Notify(userID, rejectionMessage(err))
}

// rejectionStatus maps engine rejections to HTTP status codes.
func rejectionStatus(err error) int {
	switch {
	case errors.Is(err, ledger.ErrInvalidQuantity):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrInvalidInstrument):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrInsufficientShares),
		errors.Is(err, ledger.ErrNoActiveSession):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// rejectionReason labels rejections for metrics.
func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ledger.ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, ledger.ErrInvalidInstrument):
		return "invalid_instrument"
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ledger.ErrInsufficientShares):
		return "insufficient_shares"
	case errors.Is(err, ledger.ErrNoActiveSession):
		return "no_active_session"
	default:
		return "internal"
	}
}

// rejectionMessage renders the user-facing text for a rejection.
func rejectionMessage(err error) string {
	switch {
	case errors.Is(err, ledger.ErrInvalidQuantity):
		return "Quantity must be a positive whole number of shares."
	case errors.Is(err, ledger.ErrInvalidInstrument):
		return "That ticker is not available or its price is invalid."
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return "Insufficient funds in simulation."
	case errors.Is(err, ledger.ErrInsufficientShares):
		return "Not enough shares to sell in simulation."
	case errors.Is(err, ledger.ErrNoActiveSession):
		return "No active simulation session."
	default:
		return "Something went wrong, please try again."
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
