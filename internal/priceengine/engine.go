// Package priceengine implements the stochastic weekly price process for
// the simulated market: per-instrument trend and volatility, plus
// temporary market/sector/company events that shock prices while active.
//
// The engine is a pure function of its inputs and the injected random
// source. Seeding the source makes a whole simulation run reproducible.
// Prices use shopspring/decimal; the stochastic factor itself is computed
// in float64 and converted once per update.
package priceengine

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/andrednh6/tradingschool/internal/model"
)

// PriceFloor is the lowest price any instrument can reach. Prevents
// prices from collapsing to zero and becoming unrecoverable.
var PriceFloor = decimal.NewFromFloat(0.01)

const (
	// eventCadenceWeeks: a new event may only spawn on weeks divisible
	// by this cadence.
	eventCadenceWeeks = 2

	// maxActiveEvents caps concurrently active events to keep compounded
	// price swings plausible.
	maxActiveEvents = 2

	// spawnChance is the probability of a new event on an eligible week.
	spawnChance = 0.75

	// positiveBias is the probability that a spawned event is positive.
	positiveBias = 0.6

	trendAmplifier      = 2.0
	volatilityAmplifier = 2.5
)

// Engine advances instrument prices one simulated week at a time.
type Engine struct {
	rng     *rand.Rand
	sectors []string
}

// New creates a price engine drawing randomness from rng. Passing nil
// falls back to a time-seeded source; tests pass a fixed seed instead.
func New(rng *rand.Rand, sectors []string) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Engine{rng: rng, sectors: sectors}
}

// AdvanceWeek computes the next week's prices and event set. The inputs
// are not mutated; updated copies are returned. An empty instrument list
// degenerates to an empty result.
func (e *Engine) AdvanceWeek(instruments []model.Instrument, week int, active []model.MarketEvent) ([]model.Instrument, []model.MarketEvent) {
	// 1. Expire events that ended before this week.
	events := make([]model.MarketEvent, 0, len(active))
	for _, ev := range active {
		if week < ev.StartWeek+ev.DurationWeeks {
			events = append(events, ev)
		}
	}

	// 2. Possibly spawn a new event on the cadence.
	if week > 0 && week%eventCadenceWeeks == 0 && len(events) < maxActiveEvents {
		if e.rng.Float64() < spawnChance {
			if ev, ok := e.spawnEvent(instruments, week); ok {
				events = append(events, ev)
			}
		}
	}

	// 3. Per-instrument price update.
	updated := make([]model.Instrument, 0, len(instruments))
	for _, inst := range instruments {
		factor := 1 + inst.BaseTrend*trendAmplifier
		noise := (e.rng.Float64() - 0.5) * 2 * (inst.BaseVolatility * volatilityAmplifier)
		factor *= 1 + noise

		for _, ev := range events {
			if ev.ActiveAt(week) && ev.AppliesTo(inst) {
				factor *= ev.ImpactFactor
			}
		}

		price := inst.CurrentPrice.Mul(decimal.NewFromFloat(factor))
		if price.LessThan(PriceFloor) {
			price = PriceFloor
		}
		price = price.Round(2)

		history := append(append([]decimal.Decimal(nil), inst.History...), price)
		if len(history) > model.HistoryCap {
			history = history[len(history)-model.HistoryCap:]
		}

		inst.CurrentPrice = price
		inst.History = history
		updated = append(updated, inst)
	}

	return updated, events
}

// spawnEvent draws a new random event: company-targeted, sector-targeted,
// or market-wide, each with its own impact range. Company events swing
// hardest, market-wide events least.
func (e *Engine) spawnEvent(instruments []model.Instrument, week int) (model.MarketEvent, bool) {
	duration := 1 + e.rng.Intn(3)
	kind := e.rng.Float64()
	positive := e.rng.Float64() < positiveBias

	switch {
	case kind < 0.3 && len(instruments) > 0:
		target := instruments[e.rng.Intn(len(instruments))]
		name := "Setback at " + target.Name + "."
		impact := e.randInRange(0.85, 0.95)
		if positive {
			name = "Good news for " + target.Name + "!"
			impact = e.randInRange(1.05, 1.15)
		}
		return model.MarketEvent{
			ID:            uuid.New().String(),
			Name:          name,
			TargetType:    model.TargetCompany,
			TargetSymbol:  target.Symbol,
			ImpactFactor:  impact,
			StartWeek:     week,
			DurationWeeks: duration,
		}, true

	case kind < 0.7 && len(e.sectors) > 0:
		sector := e.sectors[e.rng.Intn(len(e.sectors))]
		name := "Challenges ahead for the " + sector + " sector."
		impact := e.randInRange(0.92, 0.97)
		if positive {
			name = "Positive outlook for the " + sector + " sector."
			impact = e.randInRange(1.03, 1.08)
		}
		return model.MarketEvent{
			ID:            uuid.New().String(),
			Name:          name,
			TargetType:    model.TargetSector,
			TargetSector:  sector,
			ImpactFactor:  impact,
			StartWeek:     week,
			DurationWeeks: duration,
		}, true

	default:
		name := "Market sentiment turns bearish."
		impact := e.randInRange(0.96, 0.98)
		if positive {
			name = "Market sentiment is bullish."
			impact = e.randInRange(1.02, 1.04)
		}
		return model.MarketEvent{
			ID:            uuid.New().String(),
			Name:          name,
			TargetType:    model.TargetMarket,
			ImpactFactor:  impact,
			StartWeek:     week,
			DurationWeeks: duration,
		}, true
	}
}

func (e *Engine) randInRange(min, max float64) float64 {
	return min + e.rng.Float64()*(max-min)
}
