// Package market defines the static initial universe of tradable
// instruments and the sector taxonomy used by the simulation.
package market

import (
	"github.com/shopspring/decimal"

	"github.com/andrednh6/tradingschool/internal/model"
)

// Sectors lists every sector represented in the simulated universe.
// Sector-targeted events pick their target from this list.
var Sectors = []string{"Technology", "Health", "Energy", "Finance", "Consumer Goods"}

// seed describes one instrument of the initial universe.
type seed struct {
	symbol     string
	name       string
	sector     string
	price      string
	volatility float64
	trend      float64
}

var universe = []seed{
	{"ALPHA", "Alpha Corp", "Technology", "100.00", 0.02, 0.001},
	{"BETA", "Beta Health Inc.", "Health", "75.00", 0.015, 0.0005},
	{"GAMMA", "Gamma Energy Ltd.", "Energy", "50.00", 0.03, -0.0005},
	{"DELTA", "Delta Consumer", "Consumer Goods", "120.00", 0.01, 0.0008},
	{"EPSI", "Epsilon Finance", "Finance", "90.00", 0.025, 0.0002},
}

// Instruments returns a fresh copy of the seeded instrument universe.
// Each instrument starts with a one-point history holding its list price.
func Instruments() []model.Instrument {
	instruments := make([]model.Instrument, 0, len(universe))
	for _, s := range universe {
		price := decimal.RequireFromString(s.price)
		instruments = append(instruments, model.Instrument{
			Symbol:         s.symbol,
			Name:           s.name,
			Sector:         s.sector,
			CurrentPrice:   price,
			History:        []decimal.Decimal{price},
			BaseVolatility: s.volatility,
			BaseTrend:      s.trend,
		})
	}
	return instruments
}
