package session_test

import (
	"errors"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/andrednh6/tradingschool/internal/goals"
	"github.com/andrednh6/tradingschool/internal/ledger"
	"github.com/andrednh6/tradingschool/internal/market"
	"github.com/andrednh6/tradingschool/internal/model"
	"github.com/andrednh6/tradingschool/internal/priceengine"
	"github.com/andrednh6/tradingschool/internal/session"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newEngine(t *testing.T, maxWeeks int) *session.Engine {
	t.Helper()
	pricer := priceengine.New(rand.New(rand.NewSource(1)), market.Sectors)
	return session.NewEngine(goals.DefaultTable(), pricer, decimal.Zero, maxWeeks)
}

func hasNotice(notices []string, substr string) bool {
	for _, n := range notices {
		if strings.Contains(n, substr) {
			return true
		}
	}
	return false
}

func TestStart_Defaults(t *testing.T) {
	e := newEngine(t, 0)

	s := e.Start(decimal.Zero)

	if !s.IsActive {
		t.Error("new session should be active")
	}
	if s.CurrentLevel != 1 {
		t.Errorf("expected level 1, got %d", s.CurrentLevel)
	}
	if !s.Cash.Equal(session.DefaultInitialCash) {
		t.Errorf("expected default cash, got %s", s.Cash)
	}
	if len(s.MarketTickers) != 5 {
		t.Errorf("expected 5 seeded instruments, got %d", len(s.MarketTickers))
	}
	if s.SimulatedWeeksPassed != 0 || s.TheoryProgressLevelCompleted != 0 {
		t.Error("counters should start at zero")
	}
}

func TestStart_CustomCash(t *testing.T) {
	e := newEngine(t, 0)

	s := e.Start(d(2500))

	if !s.Cash.Equal(d(2500)) {
		t.Errorf("expected cash 2500, got %s", s.Cash)
	}
}

func TestLevelUpAfterTheoryAndTrading(t *testing.T) {
	e := newEngine(t, 0)
	s := e.Start(decimal.Zero)

	s, _, err := e.CompleteTheory(s)
	if err != nil {
		t.Fatalf("complete theory: %v", err)
	}
	if s.CurrentLevel != 1 {
		t.Fatalf("theory alone should not advance level 1, got %d", s.CurrentLevel)
	}

	s, _, _, err = e.Buy(s, "ALPHA", 5, now)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if s.CurrentLevel != 1 {
		t.Fatalf("level 1 still needs a simulated week, got level %d", s.CurrentLevel)
	}

	s, notices, err := e.AdvanceWeek(s)
	if err != nil {
		t.Fatalf("advance week: %v", err)
	}
	if s.CurrentLevel != 2 {
		t.Errorf("expected level 2 after goals met, got %d", s.CurrentLevel)
	}
	if !hasNotice(notices, "Level 2") {
		t.Errorf("expected level-up notice, got %v", notices)
	}
}

func TestTheoryCompletionUnlocksReadyLevel(t *testing.T) {
	e := newEngine(t, 0)
	s := e.Start(decimal.Zero)

	// Meet the trading goals first, with theory still pending.
	s, _, _, _ = e.Buy(s, "ALPHA", 5, now)
	s, _, _ = e.AdvanceWeek(s)
	if s.CurrentLevel != 1 {
		t.Fatalf("level must hold at 1 until theory is done, got %d", s.CurrentLevel)
	}

	s, notices, err := e.CompleteTheory(s)
	if err != nil {
		t.Fatalf("complete theory: %v", err)
	}
	if s.CurrentLevel != 2 {
		t.Errorf("theory completion should unlock the ready level, got %d", s.CurrentLevel)
	}
	if !hasNotice(notices, "Theory for Level 1") {
		t.Errorf("expected theory notice, got %v", notices)
	}
}

func TestCompleteTheory_Idempotent(t *testing.T) {
	e := newEngine(t, 0)
	s := e.Start(decimal.Zero)

	s1, _, err := e.CompleteTheory(s)
	if err != nil {
		t.Fatalf("first completion: %v", err)
	}

	s2, notices, err := e.CompleteTheory(s1)
	if err != nil {
		t.Fatalf("second completion: %v", err)
	}
	if len(notices) != 0 {
		t.Errorf("repeat completion should be silent, got %v", notices)
	}
	if s2.TheoryProgressLevelCompleted != s1.TheoryProgressLevelCompleted ||
		s2.CurrentLevel != s1.CurrentLevel {
		t.Error("repeat completion must not change the snapshot")
	}
}

func TestAdvanceWeek_IncrementsByOne(t *testing.T) {
	e := newEngine(t, 0)
	s := e.Start(decimal.Zero)

	for want := 1; want <= 5; want++ {
		var err error
		s, _, err = e.AdvanceWeek(s)
		if err != nil {
			t.Fatalf("week %d: %v", want, err)
		}
		if s.SimulatedWeeksPassed != want {
			t.Fatalf("expected week %d, got %d", want, s.SimulatedWeeksPassed)
		}
	}
}

func TestAdvanceWeek_Bankruptcy(t *testing.T) {
	e := newEngine(t, 0)
	s := e.Start(d(100))
	s.Cash = decimal.Zero // all cash gone, nothing held

	next, notices, err := e.AdvanceWeek(s)
	if err != nil {
		t.Fatalf("advance week: %v", err)
	}
	if next.IsActive {
		t.Error("bankrupt session should end")
	}
	if !hasNotice(notices, "Session ended") {
		t.Errorf("expected termination notice, got %v", notices)
	}
}

func TestAdvanceWeek_BankruptcyNeedsEmptyPortfolio(t *testing.T) {
	e := newEngine(t, 0)
	s := e.Start(d(1000))

	s, _, _, err := e.Buy(s, "ALPHA", 10, now) // all cash into shares
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if !s.Cash.IsZero() {
		t.Fatalf("expected zero cash, got %s", s.Cash)
	}

	next, _, err := e.AdvanceWeek(s)
	if err != nil {
		t.Fatalf("advance week: %v", err)
	}
	if !next.IsActive {
		t.Error("session with holdings of value must survive zero cash")
	}
}

func TestAdvanceWeek_HorizonEndsSession(t *testing.T) {
	e := newEngine(t, 3)
	s := e.Start(decimal.Zero)

	var err error
	for i := 0; i < 3; i++ {
		s, _, err = e.AdvanceWeek(s)
		if err != nil {
			t.Fatalf("week %d: %v", i+1, err)
		}
	}

	if s.IsActive {
		t.Error("session should end at the horizon")
	}
	if s.SimulatedWeeksPassed != 3 {
		t.Errorf("expected 3 weeks passed, got %d", s.SimulatedWeeksPassed)
	}
}

func TestTerminalAbsorption(t *testing.T) {
	e := newEngine(t, 0)
	s := e.Start(decimal.Zero)
	s.IsActive = false

	if _, _, _, err := e.Buy(s, "ALPHA", 1, now); !errors.Is(err, ledger.ErrNoActiveSession) {
		t.Errorf("buy on ended session: expected ErrNoActiveSession, got %v", err)
	}
	if _, _, _, err := e.Sell(s, "ALPHA", 1, now); !errors.Is(err, ledger.ErrNoActiveSession) {
		t.Errorf("sell on ended session: expected ErrNoActiveSession, got %v", err)
	}
	if _, _, err := e.AdvanceWeek(s); !errors.Is(err, ledger.ErrNoActiveSession) {
		t.Errorf("advance on ended session: expected ErrNoActiveSession, got %v", err)
	}
	if _, _, err := e.CompleteTheory(s); !errors.Is(err, ledger.ErrNoActiveSession) {
		t.Errorf("theory on ended session: expected ErrNoActiveSession, got %v", err)
	}
	if s.SimulatedWeeksPassed != 0 || len(s.Transactions) != 0 {
		t.Error("ended session must not change")
	}
}

func TestLevelNeverExceedsMax(t *testing.T) {
	// A one-level table with no criteria: completing theory finishes the
	// whole curriculum and ends the session at the max level.
	table := goals.Table{MaxLevel: 1, Levels: map[int]goals.Goal{1: {}}}
	pricer := priceengine.New(rand.New(rand.NewSource(1)), market.Sectors)
	e := session.NewEngine(table, pricer, decimal.Zero, 0)

	s := e.Start(decimal.Zero)
	s, notices, err := e.CompleteTheory(s)
	if err != nil {
		t.Fatalf("complete theory: %v", err)
	}

	if s.CurrentLevel != 1 {
		t.Errorf("level must not exceed max 1, got %d", s.CurrentLevel)
	}
	if s.IsActive {
		t.Error("completing the final level should end the session")
	}
	if !hasNotice(notices, "completed all simulation training levels") {
		t.Errorf("expected completion notice, got %v", notices)
	}
}

func TestNormalize_RepairsLegacySnapshot(t *testing.T) {
	e := newEngine(t, 0)

	legacy := &model.Session{
		IsActive:     true,
		CurrentLevel: 0,
		Cash:         d(10000),
	}

	fixed := e.Normalize(legacy)

	if fixed.CurrentLevel != 1 {
		t.Errorf("expected level repaired to 1, got %d", fixed.CurrentLevel)
	}
	if len(fixed.MarketTickers) == 0 {
		t.Error("expected instrument universe re-seeded")
	}
	if fixed.Portfolio == nil || fixed.Transactions == nil || fixed.ActiveMarketEvents == nil {
		t.Error("expected nil slices replaced with empty ones")
	}
}

func TestMonotonicWeekAndLevel(t *testing.T) {
	e := newEngine(t, 0)
	s := e.Start(decimal.Zero)
	s, _, _ = e.CompleteTheory(s)

	prevWeek, prevLevel := 0, 1
	for i := 0; i < 20 && s.IsActive; i++ {
		var err error
		s, _, err = e.AdvanceWeek(s)
		if err != nil {
			t.Fatalf("advance: %v", err)
		}
		if s.SimulatedWeeksPassed < prevWeek || s.CurrentLevel < prevLevel {
			t.Fatalf("monotonicity violated: week %d→%d level %d→%d",
				prevWeek, s.SimulatedWeeksPassed, prevLevel, s.CurrentLevel)
		}
		if s.CurrentLevel > 5 {
			t.Fatalf("level exceeded max: %d", s.CurrentLevel)
		}
		prevWeek, prevLevel = s.SimulatedWeeksPassed, s.CurrentLevel
	}
}
