// Package ledger applies buy and sell operations to a session snapshot.
//
// Both operations are pure: they validate against the given snapshot and
// either return a new snapshot with cash, portfolio, and transaction log
// updated together, or a rejection error with the input left untouched.
// The execution price is always the instrument's current price — never a
// caller-supplied one.
package ledger

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/andrednh6/tradingschool/internal/model"
)

var (
	// ErrNoActiveSession is returned when trading against a missing or
	// ended session.
	ErrNoActiveSession = errors.New("ledger: no active session")

	// ErrInvalidInstrument is returned when the symbol is not listed or
	// its price is non-positive.
	ErrInvalidInstrument = errors.New("ledger: instrument not available or price invalid")

	// ErrInvalidQuantity is returned for a non-positive quantity.
	ErrInvalidQuantity = errors.New("ledger: quantity must be a positive whole number")

	// ErrInsufficientFunds is returned when the buy cost exceeds cash.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")

	// ErrInsufficientShares is returned when selling more than is held.
	ErrInsufficientShares = errors.New("ledger: not enough shares to sell")
)

// Buy debits cash by price*quantity, merges the shares into the portfolio,
// and appends a buy transaction. Returns the new snapshot and the record.
func Buy(s *model.Session, symbol string, quantity int64, now time.Time) (*model.Session, *model.Transaction, error) {
	if s == nil || !s.IsActive {
		return s, nil, ErrNoActiveSession
	}
	if quantity <= 0 {
		return s, nil, ErrInvalidQuantity
	}

	inst := s.Instrument(symbol)
	if inst == nil || inst.CurrentPrice.LessThanOrEqual(decimal.Zero) {
		return s, nil, ErrInvalidInstrument
	}

	price := inst.CurrentPrice
	cost := price.Mul(decimal.NewFromInt(quantity))
	if s.Cash.LessThan(cost) {
		return s, nil, ErrInsufficientFunds
	}

	next := s.Clone()
	next.Cash = next.Cash.Sub(cost)

	if h := next.Holding(symbol); h != nil {
		h.Quantity += quantity
	} else {
		next.Portfolio = append(next.Portfolio, model.Holding{
			Symbol:   inst.Symbol,
			Name:     inst.Name,
			Sector:   inst.Sector,
			Quantity: quantity,
		})
	}

	tx := appendTransaction(next, model.TransactionBuy, inst.Symbol, inst.Name, inst.Sector, quantity, price, now)
	return next, tx, nil
}

// Sell credits cash by price*quantity, decrements the holding (removing
// it entirely at zero), and appends a sell transaction.
func Sell(s *model.Session, symbol string, quantity int64, now time.Time) (*model.Session, *model.Transaction, error) {
	if s == nil || !s.IsActive {
		return s, nil, ErrNoActiveSession
	}
	if quantity <= 0 {
		return s, nil, ErrInvalidQuantity
	}

	inst := s.Instrument(symbol)
	if inst == nil || inst.CurrentPrice.LessThanOrEqual(decimal.Zero) {
		return s, nil, ErrInvalidInstrument
	}

	held := s.Holding(symbol)
	if held == nil || held.Quantity < quantity {
		return s, nil, ErrInsufficientShares
	}

	price := inst.CurrentPrice
	proceeds := price.Mul(decimal.NewFromInt(quantity))

	next := s.Clone()
	next.Cash = next.Cash.Add(proceeds)

	h := next.Holding(symbol)
	h.Quantity -= quantity
	if h.Quantity == 0 {
		remaining := next.Portfolio[:0]
		for _, item := range next.Portfolio {
			if item.Symbol != symbol {
				remaining = append(remaining, item)
			}
		}
		next.Portfolio = remaining
	}

	tx := appendTransaction(next, model.TransactionSell, held.Symbol, held.Name, held.Sector, quantity, price, now)
	return next, tx, nil
}

func appendTransaction(s *model.Session, typ, symbol, name, sector string, quantity int64, price decimal.Decimal, now time.Time) *model.Transaction {
	tx := model.Transaction{
		ID:         uuid.New().String(),
		Type:       typ,
		Symbol:     symbol,
		Name:       name,
		Sector:     sector,
		Quantity:   quantity,
		Price:      price,
		TotalValue: price.Mul(decimal.NewFromInt(quantity)),
		Timestamp:  now,
	}
	s.Transactions = append(s.Transactions, tx)
	return &s.Transactions[len(s.Transactions)-1]
}
