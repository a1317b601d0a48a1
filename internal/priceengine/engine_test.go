package priceengine_test

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/andrednh6/tradingschool/internal/market"
	"github.com/andrednh6/tradingschool/internal/model"
	"github.com/andrednh6/tradingschool/internal/priceengine"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func newEngine(seed int64) *priceengine.Engine {
	return priceengine.New(rand.New(rand.NewSource(seed)), market.Sectors)
}

// flatInstrument has no drift and no noise, so only events move its price.
func flatInstrument(symbol, sector string, price float64) model.Instrument {
	return model.Instrument{
		Symbol:       symbol,
		Name:         symbol + " Corp",
		Sector:       sector,
		CurrentPrice: d(price),
		History:      []decimal.Decimal{d(price)},
	}
}

func TestAdvanceWeek_EmptyUniverse(t *testing.T) {
	e := newEngine(1)

	instruments, events := e.AdvanceWeek(nil, 1, nil)

	if len(instruments) != 0 {
		t.Errorf("expected no instruments, got %d", len(instruments))
	}
	if len(events) != 0 {
		t.Errorf("expected no events, got %d", len(events))
	}
}

func TestAdvanceWeek_Deterministic(t *testing.T) {
	e1 := newEngine(42)
	e2 := newEngine(42)

	i1, ev1 := market.Instruments(), []model.MarketEvent(nil)
	i2, ev2 := market.Instruments(), []model.MarketEvent(nil)

	for week := 1; week <= 10; week++ {
		i1, ev1 = e1.AdvanceWeek(i1, week, ev1)
		i2, ev2 = e2.AdvanceWeek(i2, week, ev2)
	}

	for k := range i1 {
		if !i1[k].CurrentPrice.Equal(i2[k].CurrentPrice) {
			t.Errorf("prices diverged for %s: %s vs %s",
				i1[k].Symbol, i1[k].CurrentPrice, i2[k].CurrentPrice)
		}
	}
	if len(ev1) != len(ev2) {
		t.Errorf("event sets diverged: %d vs %d", len(ev1), len(ev2))
	}
}

func TestAdvanceWeek_PriceFloor(t *testing.T) {
	e := newEngine(7)

	// Pathological instrument: strong downward drift and huge volatility.
	instruments := []model.Instrument{{
		Symbol:         "DOOM",
		Name:           "Doomed Inc.",
		Sector:         "Energy",
		CurrentPrice:   d(0.05),
		History:        []decimal.Decimal{d(0.05)},
		BaseVolatility: 0.4,
		BaseTrend:      -0.4,
	}}

	var events []model.MarketEvent
	for week := 1; week <= 100; week++ {
		instruments, events = e.AdvanceWeek(instruments, week, events)
		if instruments[0].CurrentPrice.LessThan(priceengine.PriceFloor) {
			t.Fatalf("week %d: price %s below floor", week, instruments[0].CurrentPrice)
		}
	}
}

func TestAdvanceWeek_HistoryCapped(t *testing.T) {
	e := newEngine(3)

	instruments := market.Instruments()
	var events []model.MarketEvent
	for week := 1; week <= model.HistoryCap+20; week++ {
		instruments, events = e.AdvanceWeek(instruments, week, events)
	}

	for _, inst := range instruments {
		if len(inst.History) > model.HistoryCap {
			t.Errorf("%s history has %d points, cap is %d",
				inst.Symbol, len(inst.History), model.HistoryCap)
		}
		last := inst.History[len(inst.History)-1]
		if !last.Equal(inst.CurrentPrice) {
			t.Errorf("%s: last history point %s != current price %s",
				inst.Symbol, last, inst.CurrentPrice)
		}
	}
}

func TestAdvanceWeek_EventCapRespected(t *testing.T) {
	e := newEngine(11)

	instruments := market.Instruments()
	var events []model.MarketEvent
	for week := 1; week <= 60; week++ {
		instruments, events = e.AdvanceWeek(instruments, week, events)
		if len(events) > 2 {
			t.Fatalf("week %d: %d concurrent events, cap is 2", week, len(events))
		}
	}
}

func TestAdvanceWeek_NoSpawnOffCadence(t *testing.T) {
	e := newEngine(5)

	// Week 1 is off the two-week cadence: no event may appear.
	_, events := e.AdvanceWeek(market.Instruments(), 1, nil)

	if len(events) != 0 {
		t.Errorf("expected no events on week 1, got %d", len(events))
	}
}

func TestAdvanceWeek_ExpiredEventDropped(t *testing.T) {
	e := newEngine(9)

	expired := model.MarketEvent{
		ID:            "evt-1",
		Name:          "Old news",
		TargetType:    model.TargetMarket,
		ImpactFactor:  1.5,
		StartWeek:     1,
		DurationWeeks: 1,
	}

	// Week 3 is past [1, 2) and off-cadence, so nothing replaces it.
	_, events := e.AdvanceWeek(market.Instruments(), 3, []model.MarketEvent{expired})

	if len(events) != 0 {
		t.Errorf("expected expired event to be dropped, got %d events", len(events))
	}
}

func TestAdvanceWeek_EventTargeting(t *testing.T) {
	e := newEngine(13)

	instruments := []model.Instrument{
		flatInstrument("TECH", "Technology", 100),
		flatInstrument("HLTH", "Health", 100),
	}
	events := []model.MarketEvent{{
		ID:            "evt-sector",
		Name:          "Tech rally",
		TargetType:    model.TargetSector,
		TargetSector:  "Technology",
		ImpactFactor:  1.10,
		StartWeek:     1,
		DurationWeeks: 5,
	}}

	updated, _ := e.AdvanceWeek(instruments, 1, events)

	if !updated[0].CurrentPrice.Equal(d(110)) {
		t.Errorf("sector event should move TECH to 110, got %s", updated[0].CurrentPrice)
	}
	if !updated[1].CurrentPrice.Equal(d(100)) {
		t.Errorf("sector event must not touch HLTH, got %s", updated[1].CurrentPrice)
	}
}

func TestAdvanceWeek_EventsCompound(t *testing.T) {
	e := newEngine(17)

	instruments := []model.Instrument{flatInstrument("TECH", "Technology", 100)}
	events := []model.MarketEvent{
		{
			ID: "evt-market", Name: "Bull market",
			TargetType: model.TargetMarket, ImpactFactor: 1.02,
			StartWeek: 1, DurationWeeks: 3,
		},
		{
			ID: "evt-company", Name: "Good news",
			TargetType: model.TargetCompany, TargetSymbol: "TECH", ImpactFactor: 1.10,
			StartWeek: 1, DurationWeeks: 3,
		},
	}

	updated, _ := e.AdvanceWeek(instruments, 1, events)

	// 100 * 1.02 * 1.10 = 112.20
	if !updated[0].CurrentPrice.Equal(d(112.20)) {
		t.Errorf("expected compounded price 112.20, got %s", updated[0].CurrentPrice)
	}
}

func TestAdvanceWeek_InputNotMutated(t *testing.T) {
	e := newEngine(23)

	instruments := market.Instruments()
	before := instruments[0].CurrentPrice

	e.AdvanceWeek(instruments, 1, nil)

	if !instruments[0].CurrentPrice.Equal(before) {
		t.Errorf("input instrument mutated: %s → %s", before, instruments[0].CurrentPrice)
	}
	if len(instruments[0].History) != 1 {
		t.Errorf("input history mutated: %d points", len(instruments[0].History))
	}
}
