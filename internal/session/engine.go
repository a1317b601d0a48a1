// Package session provides the turn-based simulation engine and the HTTP
// handlers exposing it: session lifecycle, trade recording, weekly market
// advancement, and theory/level progression.
package session

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/andrednh6/tradingschool/internal/goals"
	"github.com/andrednh6/tradingschool/internal/ledger"
	"github.com/andrednh6/tradingschool/internal/market"
	"github.com/andrednh6/tradingschool/internal/model"
	"github.com/andrednh6/tradingschool/internal/priceengine"
)

// DefaultInitialCash is the starting cash when none is requested.
var DefaultInitialCash = decimal.NewFromInt(10000)

// DefaultMaxWeeks is the simulation horizon: reaching it ends the session.
const DefaultMaxWeeks = 52

// Engine owns the pure state transitions of a simulation session. Every
// method returns a new snapshot (or the unchanged input plus a rejection)
// and the user-facing messages produced by the transition.
type Engine struct {
	goals       goals.Table
	pricer      *priceengine.Engine
	initialCash decimal.Decimal
	maxWeeks    int
}

// NewEngine creates a session engine. initialCash and maxWeeks fall back
// to the defaults when non-positive.
func NewEngine(table goals.Table, pricer *priceengine.Engine, initialCash decimal.Decimal, maxWeeks int) *Engine {
	if initialCash.LessThanOrEqual(decimal.Zero) {
		initialCash = DefaultInitialCash
	}
	if maxWeeks <= 0 {
		maxWeeks = DefaultMaxWeeks
	}
	return &Engine{
		goals:       table,
		pricer:      pricer,
		initialCash: initialCash,
		maxWeeks:    maxWeeks,
	}
}

// MaxWeeks returns the configured simulation horizon.
func (e *Engine) MaxWeeks() int { return e.maxWeeks }

// Start creates a fresh session: counters zeroed, starting cash, seeded
// instrument universe. A non-positive initialCash uses the default.
func (e *Engine) Start(initialCash decimal.Decimal) *model.Session {
	if initialCash.LessThanOrEqual(decimal.Zero) {
		initialCash = e.initialCash
	}
	return &model.Session{
		IsActive:           true,
		CurrentLevel:       1,
		Cash:               initialCash,
		Portfolio:          []model.Holding{},
		Transactions:       []model.Transaction{},
		MarketTickers:      market.Instruments(),
		ActiveMarketEvents: []model.MarketEvent{},
	}
}

// Normalize repairs a snapshot loaded from persistence: nil slices become
// empty and an empty instrument universe is re-seeded. Older snapshots
// saved before events existed load cleanly this way.
func (e *Engine) Normalize(s *model.Session) *model.Session {
	if s == nil {
		return nil
	}
	next := s.Clone()
	if next.Portfolio == nil {
		next.Portfolio = []model.Holding{}
	}
	if next.Transactions == nil {
		next.Transactions = []model.Transaction{}
	}
	if next.ActiveMarketEvents == nil {
		next.ActiveMarketEvents = []model.MarketEvent{}
	}
	if len(next.MarketTickers) == 0 {
		next.MarketTickers = market.Instruments()
	}
	if next.CurrentLevel < 1 {
		next.CurrentLevel = 1
	}
	return next
}

// Buy records a purchase at the instrument's current price, then runs the
// goal evaluator against the new snapshot.
func (e *Engine) Buy(s *model.Session, symbol string, quantity int64, now time.Time) (*model.Session, *model.Transaction, []string, error) {
	next, tx, err := ledger.Buy(s, symbol, quantity, now)
	if err != nil {
		return s, nil, nil, err
	}
	notices := []string{fmt.Sprintf("Bought %d of %s @ $%s", quantity, symbol, tx.Price.StringFixed(2))}
	notices = append(notices, e.checkAdvance(next)...)
	return next, tx, notices, nil
}

// Sell records a sale at the instrument's current price, then runs the
// goal evaluator against the new snapshot.
func (e *Engine) Sell(s *model.Session, symbol string, quantity int64, now time.Time) (*model.Session, *model.Transaction, []string, error) {
	next, tx, err := ledger.Sell(s, symbol, quantity, now)
	if err != nil {
		return s, nil, nil, err
	}
	notices := []string{fmt.Sprintf("Sold %d of %s @ $%s", quantity, symbol, tx.Price.StringFixed(2))}
	notices = append(notices, e.checkAdvance(next)...)
	return next, tx, notices, nil
}

// CompleteTheory marks the current level's theory as done and re-runs the
// goal evaluator: theory completion alone can unlock a level whose trading
// goals were already met. Calling it again at the same level is a no-op.
func (e *Engine) CompleteTheory(s *model.Session) (*model.Session, []string, error) {
	if s == nil || !s.IsActive {
		return s, nil, ledger.ErrNoActiveSession
	}
	if s.TheoryProgressLevelCompleted >= s.CurrentLevel {
		return s, nil, nil
	}

	next := s.Clone()
	next.TheoryProgressLevelCompleted = next.CurrentLevel
	notices := []string{fmt.Sprintf("Theory for Level %d completed! Now complete the practical goals.", next.CurrentLevel)}
	notices = append(notices, e.checkAdvance(next)...)
	return next, notices, nil
}

// AdvanceWeek moves the market one simulated week forward. Terminal
// checks run before goal evaluation: first the simulation horizon, then
// bankruptcy (cash and holdings value both zero or less).
func (e *Engine) AdvanceWeek(s *model.Session) (*model.Session, []string, error) {
	if s == nil || !s.IsActive {
		return s, nil, ledger.ErrNoActiveSession
	}

	next := s.Clone()
	next.SimulatedWeeksPassed++
	next.MarketTickers, next.ActiveMarketEvents = e.pricer.AdvanceWeek(
		next.MarketTickers, next.SimulatedWeeksPassed, next.ActiveMarketEvents)

	notices := []string{fmt.Sprintf("Simulated Week %d. The market has moved...", next.SimulatedWeeksPassed)}

	switch {
	case next.SimulatedWeeksPassed >= e.maxWeeks:
		next.IsActive = false
		notices = append(notices, fmt.Sprintf("The simulation horizon of %d weeks has been reached. Session ended.", e.maxWeeks))
	case next.Cash.LessThanOrEqual(decimal.Zero) && next.HoldingsValue().LessThanOrEqual(decimal.Zero):
		next.IsActive = false
		notices = append(notices, "You're out of cash and holdings. Session ended.")
	default:
		notices = append(notices, e.checkAdvance(next)...)
	}

	return next, notices, nil
}

// checkAdvance applies the goal evaluator to an in-progress snapshot and
// advances the level by exactly one when complete. Completing the highest
// level ends the session.
func (e *Engine) checkAdvance(s *model.Session) []string {
	if !e.goals.Complete(s) {
		return nil
	}
	if s.CurrentLevel >= e.goals.MaxLevel {
		s.IsActive = false
		return []string{"You've completed all simulation training levels! Excellent work!"}
	}
	s.CurrentLevel++
	return []string{fmt.Sprintf("Congratulations! You've advanced to Level %d!", s.CurrentLevel)}
}
