// Package goals defines per-level completion criteria and the evaluator
// that gates progression between training levels.
//
// A level's goal record lists any subset of the supported criteria;
// absent criteria are vacuously true. Theory completion is checked
// before any trading criterion.
package goals

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"github.com/andrednh6/tradingschool/internal/model"
)

// Goal holds the completion criteria for one level. Nil fields are not
// evaluated.
type Goal struct {
	BuyTransactionsMin    *int             `json:"buy_transactions_min,omitempty"`
	SellTransactionsMin   *int             `json:"sell_transactions_min,omitempty"`
	TotalTransactionsMin  *int             `json:"total_transactions_min,omitempty"`
	HasStocksInPortfolio  *bool            `json:"has_stocks_in_portfolio,omitempty"`
	SectorsInPortfolioMin *int             `json:"sectors_in_portfolio_min,omitempty"`
	PortfolioValueMin     *decimal.Decimal `json:"portfolio_value_min,omitempty"`
	SimulatedWeeksMin     *int             `json:"simulated_weeks_min,omitempty"`
}

// Table maps level numbers to their goals. MaxLevel is the highest
// defined level; completing it ends the session.
type Table struct {
	MaxLevel int          `json:"max_level"`
	Levels   map[int]Goal `json:"levels"`
}

func intPtr(v int) *int { return &v }
func boolPtr(v bool) *bool { return &v }

func decPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

// DefaultTable returns the built-in five-level progression.
func DefaultTable() Table {
	return Table{
		MaxLevel: 5,
		Levels: map[int]Goal{
			1: {BuyTransactionsMin: intPtr(1), HasStocksInPortfolio: boolPtr(true), SimulatedWeeksMin: intPtr(1)},
			2: {SectorsInPortfolioMin: intPtr(2), PortfolioValueMin: decPtr(10200), SimulatedWeeksMin: intPtr(3), SellTransactionsMin: intPtr(1)},
			3: {TotalTransactionsMin: intPtr(5), PortfolioValueMin: decPtr(10500), SimulatedWeeksMin: intPtr(6)},
			4: {TotalTransactionsMin: intPtr(8), PortfolioValueMin: decPtr(11000), SimulatedWeeksMin: intPtr(10)},
			5: {TotalTransactionsMin: intPtr(12), PortfolioValueMin: decPtr(12000), SimulatedWeeksMin: intPtr(14)},
		},
	}
}

// LoadTable reads a goal table from a JSON file. A malformed table is a
// configuration error and should abort startup.
func LoadTable(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("goals: read table: %w", err)
	}
	var t Table
	if err := json.Unmarshal(data, &t); err != nil {
		return Table{}, fmt.Errorf("goals: parse table: %w", err)
	}
	if err := t.Validate(); err != nil {
		return Table{}, err
	}
	return t, nil
}

// Validate checks structural sanity of the table.
func (t Table) Validate() error {
	if t.MaxLevel < 1 {
		return fmt.Errorf("goals: max_level must be >= 1, got %d", t.MaxLevel)
	}
	for level := 1; level <= t.MaxLevel; level++ {
		if _, ok := t.Levels[level]; !ok {
			return fmt.Errorf("goals: no goal record for level %d", level)
		}
	}
	return nil
}

// Complete reports whether the session's current level goals are fully
// met. Theory must be completed for the current level before trading
// criteria are even considered. All present criteria must hold at once,
// evaluated against the given snapshot.
func (t Table) Complete(s *model.Session) bool {
	if s == nil || !s.IsActive || s.CurrentLevel > t.MaxLevel {
		return false
	}
	if s.TheoryProgressLevelCompleted < s.CurrentLevel {
		return false
	}

	g, ok := t.Levels[s.CurrentLevel]
	if !ok {
		return false
	}

	if g.SimulatedWeeksMin != nil && s.SimulatedWeeksPassed < *g.SimulatedWeeksMin {
		return false
	}
	if g.BuyTransactionsMin != nil && s.CountTransactions(model.TransactionBuy) < *g.BuyTransactionsMin {
		return false
	}
	if g.SellTransactionsMin != nil && s.CountTransactions(model.TransactionSell) < *g.SellTransactionsMin {
		return false
	}
	if g.TotalTransactionsMin != nil && s.CountTransactions("") < *g.TotalTransactionsMin {
		return false
	}
	if g.HasStocksInPortfolio != nil && *g.HasStocksInPortfolio {
		held := false
		for _, h := range s.Portfolio {
			if h.Quantity > 0 {
				held = true
				break
			}
		}
		if !held {
			return false
		}
	}
	if g.SectorsInPortfolioMin != nil && s.SectorsHeld() < *g.SectorsInPortfolioMin {
		return false
	}
	if g.PortfolioValueMin != nil && s.TotalValue().LessThan(*g.PortfolioValueMin) {
		return false
	}

	return true
}
