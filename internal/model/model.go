// Package model defines the core domain types shared across the simulation
// engine. All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// HistoryCap is the maximum number of price points retained per instrument.
const HistoryCap = 52

// Instrument is a tradable synthetic security with a weekly price process.
// Symbol and sector are immutable; CurrentPrice and History mutate only
// through the price engine, once per simulated week.
type Instrument struct {
	Symbol         string            `json:"symbol" db:"symbol"`
	Name           string            `json:"name" db:"name"`
	Sector         string            `json:"sector" db:"sector"`
	CurrentPrice   decimal.Decimal   `json:"current_price" db:"current_price"`
	History        []decimal.Decimal `json:"history" db:"history"` // most-recent-last, capped at HistoryCap
	BaseVolatility float64           `json:"base_volatility" db:"base_volatility"` // e.g. 0.02 → 2% typical weekly swing
	BaseTrend      float64           `json:"base_trend" db:"base_trend"`           // e.g. 0.001 → 0.1% weekly drift
}

// EventTarget discriminates which instruments a market event applies to.
type EventTarget string

const (
	TargetMarket  EventTarget = "market"  // every instrument
	TargetSector  EventTarget = "sector"  // instruments in TargetSector
	TargetCompany EventTarget = "company" // the instrument matching TargetSymbol
)

// MarketEvent is a temporary multiplicative shock to instrument prices.
// Active precisely for weeks in [StartWeek, StartWeek+DurationWeeks).
type MarketEvent struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	TargetType    EventTarget `json:"target_type"`
	TargetSector  string      `json:"target_sector,omitempty"`
	TargetSymbol  string      `json:"target_symbol,omitempty"`
	ImpactFactor  float64     `json:"impact_factor"` // multiplicative, > 0
	StartWeek     int         `json:"start_week"`
	DurationWeeks int         `json:"duration_weeks"`
}

// ActiveAt reports whether the event applies during the given week.
func (e MarketEvent) ActiveAt(week int) bool {
	return week >= e.StartWeek && week < e.StartWeek+e.DurationWeeks
}

// AppliesTo reports whether the event's impact reaches the instrument.
func (e MarketEvent) AppliesTo(inst Instrument) bool {
	switch e.TargetType {
	case TargetMarket:
		return true
	case TargetSector:
		return e.TargetSector == inst.Sector
	case TargetCompany:
		return e.TargetSymbol == inst.Symbol
	default:
		return false
	}
}

// Holding is a portfolio line item. Quantity is always strictly positive;
// a holding reduced to zero is removed, never retained as a zero row.
type Holding struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Sector   string `json:"sector"`
	Quantity int64  `json:"quantity"`
}

// Transaction types.
const (
	TransactionBuy  = "buy"
	TransactionSell = "sell"
)

// Transaction is an immutable record of a trade execution. Once appended,
// these are never modified or deleted, only filtered for display.
type Transaction struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"` // "buy" or "sell"
	Symbol     string          `json:"symbol"`
	Name       string          `json:"name"`
	Sector     string          `json:"sector"`
	Quantity   int64           `json:"quantity"`
	Price      decimal.Decimal `json:"price"`       // instrument price at execution
	TotalValue decimal.Decimal `json:"total_value"` // Quantity * Price
	Timestamp  time.Time       `json:"timestamp"`
}

// Session is the aggregate root: the complete state of one training run.
// Transitions clone the session and return a new snapshot; the previous
// value is never mutated in place.
type Session struct {
	IsActive                     bool            `json:"is_active"`
	CurrentLevel                 int             `json:"current_level"`
	TheoryProgressLevelCompleted int             `json:"theory_progress_level_completed"`
	Cash                         decimal.Decimal `json:"cash"`
	Portfolio                    []Holding       `json:"portfolio"`
	Transactions                 []Transaction   `json:"transactions"`
	SimulatedWeeksPassed         int             `json:"simulated_weeks_passed"`
	MarketTickers                []Instrument    `json:"market_tickers"`
	ActiveMarketEvents           []MarketEvent   `json:"active_market_events"`
}

// Instrument returns the listed instrument for symbol, or nil.
func (s *Session) Instrument(symbol string) *Instrument {
	for i := range s.MarketTickers {
		if s.MarketTickers[i].Symbol == symbol {
			return &s.MarketTickers[i]
		}
	}
	return nil
}

// PriceOf returns the current price for symbol, or zero if not listed.
func (s *Session) PriceOf(symbol string) decimal.Decimal {
	if inst := s.Instrument(symbol); inst != nil {
		return inst.CurrentPrice
	}
	return decimal.Zero
}

// Holding returns the portfolio entry for symbol, or nil.
func (s *Session) Holding(symbol string) *Holding {
	for i := range s.Portfolio {
		if s.Portfolio[i].Symbol == symbol {
			return &s.Portfolio[i]
		}
	}
	return nil
}

// HoldingsValue marks the portfolio to market at current prices.
func (s *Session) HoldingsValue() decimal.Decimal {
	total := decimal.Zero
	for _, h := range s.Portfolio {
		total = total.Add(s.PriceOf(h.Symbol).Mul(decimal.NewFromInt(h.Quantity)))
	}
	return total
}

// TotalValue is cash plus the mark-to-market value of all holdings.
func (s *Session) TotalValue() decimal.Decimal {
	return s.Cash.Add(s.HoldingsValue())
}

// CountTransactions returns the number of transactions of the given type,
// or all transactions when typ is empty.
func (s *Session) CountTransactions(typ string) int {
	if typ == "" {
		return len(s.Transactions)
	}
	n := 0
	for _, tx := range s.Transactions {
		if tx.Type == typ {
			n++
		}
	}
	return n
}

// SectorsHeld returns the number of distinct sectors in the portfolio.
func (s *Session) SectorsHeld() int {
	sectors := make(map[string]struct{}, len(s.Portfolio))
	for _, h := range s.Portfolio {
		sectors[h.Sector] = struct{}{}
	}
	return len(sectors)
}

// Clone returns a deep copy of the session. Transitions operate on the
// copy so callers always observe either the old or the new snapshot.
func (s *Session) Clone() *Session {
	c := *s

	c.Portfolio = make([]Holding, len(s.Portfolio))
	copy(c.Portfolio, s.Portfolio)

	c.Transactions = make([]Transaction, len(s.Transactions))
	copy(c.Transactions, s.Transactions)

	c.MarketTickers = make([]Instrument, len(s.MarketTickers))
	for i, inst := range s.MarketTickers {
		inst.History = append([]decimal.Decimal(nil), inst.History...)
		c.MarketTickers[i] = inst
	}

	c.ActiveMarketEvents = make([]MarketEvent, len(s.ActiveMarketEvents))
	copy(c.ActiveMarketEvents, s.ActiveMarketEvents)

	return &c
}
