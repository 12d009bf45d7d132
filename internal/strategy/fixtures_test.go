package strategy

import "ETFSentinel/internal/model"

var basket = []model.InstrumentProfile{
	{Symbol: "NIFTYBEES.NS", Name: "NiftyBees", Category: model.CategoryCore, Target: 3750, Priority: 1},
	{Symbol: "ICICINXT50.NS", Name: "ICICI Next 50", Category: model.CategoryCore, Target: 3000, Priority: 2},
	{Symbol: "MON100.NS", Name: "Nasdaq 100", Category: model.CategoryGlobal, Target: 2250, Priority: 4},
	{Symbol: "ICICIPHARM.NS", Name: "ICICI Pharma", Category: model.CategorySector, Target: 1500, Priority: 3},
	{Symbol: "GOLDBEES.NS", Name: "GoldBees", Category: model.CategoryCommodity, Target: 2250, Priority: 5},
	{Symbol: "SILVERBEES.NS", Name: "SilverBees", Category: model.CategoryCommodity, Target: 1500, Priority: 6, Silver: true},
}

var rules = model.AllocationRules{
	MonthlyBudget: 15000,
	DailyBase:     750,
	MinPurchase:   500,
	CrashAmount:   1000,
	DipAmount:     500,
	CrashBuffer:   750,
	MonthEndDays:  3,
	Caps:          model.CategoryCaps{Core: 45, Global: 20, Sector: 20, Commodity: 15, Silver: 10},
	Zones:         model.ZoneThresholds{Crash: -2, Normal: 0, SkipAbove: 1},
}

func instrument(symbol string) model.InstrumentProfile {
	in, ok := model.FindInstrument(basket, symbol)
	if !ok {
		panic("unknown fixture instrument " + symbol)
	}
	return in
}

func observe(symbol string, price, changePct float64) model.MarketObservation {
	return model.MarketObservation{Symbol: symbol, Price: price, ChangePct: changePct}
}
