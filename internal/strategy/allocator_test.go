package strategy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ETFSentinel/internal/model"
)

func freshState(cash float64) model.BudgetState {
	return model.BudgetState{Month: "2026-03", DailyCash: cash, CrashBuffer: rules.CrashBuffer, Spent: map[string]float64{}}
}

func TestDecide_CrashUsesBuffer(t *testing.T) {
	in := Input{
		Rules:        rules,
		Instruments:  []model.InstrumentProfile{instrument("NIFTYBEES.NS")},
		State:        freshState(750),
		Holdings:     model.HoldingsSnapshot{},
		Observations: map[string]model.MarketObservation{"NIFTYBEES.NS": observe("NIFTYBEES.NS", 245, -2.5)},
	}
	state, res := Decide(in)

	require.Len(t, res.Purchases, 1)
	p := res.Purchases[0]
	assert.Equal(t, model.ZoneCrash, p.Zone)
	// min(1000, 1500) = 1000 → 4 units at 245
	assert.Equal(t, int64(4), p.Quantity)
	assert.InDelta(t, 980, p.Amount, 1e-9)
	assert.True(t, p.BufferUsed)
	assert.Equal(t, model.SourceRules, p.Source)

	assert.Zero(t, state.CrashBuffer)
	assert.Zero(t, state.DailyCash)
	assert.InDelta(t, 980, state.Spent["NIFTYBEES.NS"], 1e-9)
	assert.Equal(t, state, res.State)

	// input state must be untouched
	assert.Equal(t, 750.0, in.State.DailyCash)
	assert.Empty(t, in.State.Spent)
}

func TestDecide_SkipZoneMovesNoCash(t *testing.T) {
	in := Input{
		Rules:        rules,
		Instruments:  []model.InstrumentProfile{instrument("MON100.NS")},
		State:        freshState(750),
		Holdings:     model.HoldingsSnapshot{"MON100.NS": {Invested: 100000}},
		Observations: map[string]model.MarketObservation{"MON100.NS": observe("MON100.NS", 180, 1.5)},
	}
	state, res := Decide(in)

	assert.Empty(t, res.Purchases)
	require.Len(t, res.Skips, 1)
	assert.Equal(t, model.SkipZone, res.Skips[0].Reason)
	assert.Equal(t, model.ZoneSkip, res.Skips[0].Zone)
	assert.Equal(t, 750.0, state.DailyCash)
	assert.Equal(t, rules.CrashBuffer, state.CrashBuffer)
}

func TestDecide_TargetReachedExcluded(t *testing.T) {
	st := freshState(3000)
	st.Spent["ICICIPHARM.NS"] = 1500
	in := Input{
		Rules:        rules,
		Instruments:  []model.InstrumentProfile{instrument("ICICIPHARM.NS")},
		State:        st,
		Holdings:     model.HoldingsSnapshot{},
		Observations: map[string]model.MarketObservation{"ICICIPHARM.NS": observe("ICICIPHARM.NS", 20, -4)},
	}
	state, res := Decide(in)

	assert.Empty(t, res.Purchases)
	require.Len(t, res.Skips, 1)
	assert.Equal(t, model.SkipTargetReached, res.Skips[0].Reason)
	assert.Equal(t, 3000.0, state.DailyCash)
}

func TestDecide_FetchFailureDoesNotAbortCycle(t *testing.T) {
	in := Input{
		Rules: rules,
		Instruments: []model.InstrumentProfile{
			instrument("NIFTYBEES.NS"), instrument("ICICINXT50.NS"), instrument("GOLDBEES.NS"),
		},
		State:    freshState(1500),
		Holdings: model.HoldingsSnapshot{"NIFTYBEES.NS": {Invested: 50000}},
		Observations: map[string]model.MarketObservation{
			"NIFTYBEES.NS": observe("NIFTYBEES.NS", 250, -0.5),
			"GOLDBEES.NS":  observe("GOLDBEES.NS", 50, -1),
		},
		FetchErrors: map[string]error{"ICICINXT50.NS": errors.New("timeout")},
	}
	_, res := Decide(in)

	require.Len(t, res.FetchErrors, 1)
	assert.Equal(t, "ICICINXT50.NS", res.FetchErrors[0].Symbol)
	assert.Len(t, res.Observations, 2)
	require.Len(t, res.Purchases, 2)
	assert.Equal(t, "NIFTYBEES.NS", res.Purchases[0].Symbol)
	assert.Equal(t, "GOLDBEES.NS", res.Purchases[1].Symbol)
}

func TestDecide_MissingObservationIsFetchError(t *testing.T) {
	in := Input{
		Rules:        rules,
		Instruments:  []model.InstrumentProfile{instrument("NIFTYBEES.NS")},
		State:        freshState(750),
		Holdings:     model.HoldingsSnapshot{},
		Observations: map[string]model.MarketObservation{},
	}
	_, res := Decide(in)
	require.Len(t, res.FetchErrors, 1)
	assert.ErrorIs(t, res.FetchErrors[0], ErrNoObservation)
}

func TestDecide_PriorityOrderConsumesCash(t *testing.T) {
	// Declared out of priority order: pharma (3) before next50 (2).
	in := Input{
		Rules:       rules,
		Instruments: []model.InstrumentProfile{instrument("ICICIPHARM.NS"), instrument("ICICINXT50.NS")},
		State:       freshState(750),
		Holdings:    model.HoldingsSnapshot{},
		Observations: map[string]model.MarketObservation{
			"ICICIPHARM.NS": observe("ICICIPHARM.NS", 100, -1),
			"ICICINXT50.NS": observe("ICICINXT50.NS", 100, -1),
		},
	}
	state, res := Decide(in)

	require.Len(t, res.Purchases, 1)
	assert.Equal(t, "ICICINXT50.NS", res.Purchases[0].Symbol)
	assert.InDelta(t, 500, res.Purchases[0].Amount, 1e-9)
	require.Len(t, res.Skips, 1)
	assert.Equal(t, "ICICIPHARM.NS", res.Skips[0].Symbol)
	assert.Equal(t, model.SkipLowCash, res.Skips[0].Reason)
	assert.InDelta(t, 250, state.DailyCash, 1e-9)
}

func TestDecide_BufferConsumedOnlyOnce(t *testing.T) {
	in := Input{
		Rules:       rules,
		Instruments: []model.InstrumentProfile{instrument("NIFTYBEES.NS"), instrument("ICICINXT50.NS")},
		State:       freshState(1500),
		Holdings:    model.HoldingsSnapshot{},
		Observations: map[string]model.MarketObservation{
			"NIFTYBEES.NS":  observe("NIFTYBEES.NS", 100, -3),
			"ICICINXT50.NS": observe("ICICINXT50.NS", 100, -3),
		},
	}
	state, res := Decide(in)

	require.Len(t, res.Purchases, 2)
	assert.True(t, res.Purchases[0].BufferUsed)
	assert.InDelta(t, 1000, res.Purchases[0].Amount, 1e-9)
	// 1500 - 1000 leaves 500: the second crash sees no buffer but still
	// clears the floor.
	assert.False(t, res.Purchases[1].BufferUsed)
	assert.InDelta(t, 500, res.Purchases[1].Amount, 1e-9)
	assert.Zero(t, state.DailyCash)
	assert.Zero(t, state.CrashBuffer)
}

func TestDecide_NeverSpendsMoreThanAvailable(t *testing.T) {
	in := Input{
		Rules:       rules,
		Instruments: basket,
		State:       freshState(2250),
		Holdings:    model.HoldingsSnapshot{},
		Observations: map[string]model.MarketObservation{
			"NIFTYBEES.NS":  observe("NIFTYBEES.NS", 260, -2.2),
			"ICICINXT50.NS": observe("ICICINXT50.NS", 61, -2.1),
			"MON100.NS":     observe("MON100.NS", 170, -0.3),
			"ICICIPHARM.NS": observe("ICICIPHARM.NS", 21, -0.7),
			"GOLDBEES.NS":   observe("GOLDBEES.NS", 55, -2.4),
			"SILVERBEES.NS": observe("SILVERBEES.NS", 88, -3),
		},
	}
	state, res := Decide(in)

	budget := in.State.DailyCash + in.State.CrashBuffer
	assert.LessOrEqual(t, res.TotalSpent(), budget)
	assert.GreaterOrEqual(t, state.DailyCash, 0.0)
	assert.Contains(t, []float64{0, rules.CrashBuffer}, state.CrashBuffer)
	assert.InDelta(t, res.TotalSpent(), state.TotalSpent(), 1e-9)
}

func TestDecide_GuardrailBlockRecorded(t *testing.T) {
	in := Input{
		Rules:        rules,
		Instruments:  basket,
		State:        freshState(750),
		Holdings:     model.HoldingsSnapshot{"NIFTYBEES.NS": {Invested: 5000}, "SILVERBEES.NS": {Invested: 500}},
		Observations: map[string]model.MarketObservation{"SILVERBEES.NS": observe("SILVERBEES.NS", 90, -1)},
	}
	for _, inst := range basket {
		if inst.Symbol != "SILVERBEES.NS" {
			in.Observations[inst.Symbol] = observe(inst.Symbol, 100, 0.5)
		}
	}
	state, res := Decide(in)

	assert.Empty(t, res.Purchases)
	var blocked *model.Skip
	for i := range res.Skips {
		if res.Skips[i].Reason == model.SkipGuardrail {
			blocked = &res.Skips[i]
		}
	}
	require.NotNil(t, blocked)
	assert.Equal(t, "SILVERBEES.NS", blocked.Symbol)
	assert.Equal(t, 750.0, state.DailyCash)
}

func TestDecide_PriceAboveAmountSkipped(t *testing.T) {
	in := Input{
		Rules:        rules,
		Instruments:  []model.InstrumentProfile{instrument("MON100.NS")},
		State:        freshState(750),
		Holdings:     model.HoldingsSnapshot{},
		Observations: map[string]model.MarketObservation{"MON100.NS": observe("MON100.NS", 612, -0.4)},
	}
	_, res := Decide(in)
	require.Len(t, res.Skips, 1)
	assert.Equal(t, model.SkipPriceTooHigh, res.Skips[0].Reason)
}

func TestDecide_Deterministic(t *testing.T) {
	in := Input{
		Rules:       rules,
		Instruments: basket,
		State:       freshState(1500),
		Holdings:    model.HoldingsSnapshot{"NIFTYBEES.NS": {Invested: 4000}, "GOLDBEES.NS": {Invested: 400}},
		Observations: map[string]model.MarketObservation{
			"NIFTYBEES.NS":  observe("NIFTYBEES.NS", 260, -1.2),
			"ICICINXT50.NS": observe("ICICINXT50.NS", 61, -2.1),
			"MON100.NS":     observe("MON100.NS", 170, 0.3),
			"ICICIPHARM.NS": observe("ICICIPHARM.NS", 21, -0.7),
			"GOLDBEES.NS":   observe("GOLDBEES.NS", 55, -2.4),
			"SILVERBEES.NS": observe("SILVERBEES.NS", 88, 2),
		},
	}
	firstState, first := Decide(in)
	for i := 0; i < 20; i++ {
		s, r := Decide(in)
		assert.Equal(t, first.Purchases, r.Purchases)
		assert.Equal(t, firstState, s)
	}
}

func TestDecide_AdvisorProposalsAreStillChecked(t *testing.T) {
	in := Input{
		Rules:       rules,
		Instruments: []model.InstrumentProfile{instrument("NIFTYBEES.NS"), instrument("ICICINXT50.NS"), instrument("MON100.NS")},
		State:       freshState(1500),
		Holdings:    model.HoldingsSnapshot{},
		Observations: map[string]model.MarketObservation{
			"NIFTYBEES.NS":  observe("NIFTYBEES.NS", 250, -0.8),
			"ICICINXT50.NS": observe("ICICINXT50.NS", 60, -0.5),
			"MON100.NS":     observe("MON100.NS", 170, 1.8),
		},
		Advice: &model.Advice{
			Buy: []model.AdviceBuy{
				// asks for more than available cash at a stale price
				{Symbol: "NIFTYBEES.NS", Qty: 20, Price: 200, Amount: 4000, Reason: "core dip"},
				// SKIP zone: must be refused whatever the advisor says
				{Symbol: "MON100.NS", Qty: 3, Price: 170, Amount: 510, Reason: "momentum"},
				{Symbol: "UNKNOWN.NS", Amount: 500},
			},
			Skip: []string{"ICICINXT50.NS"},
		},
	}
	state, res := Decide(in)

	assert.True(t, res.AdvisorUsed)
	require.Len(t, res.Purchases, 1)
	p := res.Purchases[0]
	assert.Equal(t, "NIFTYBEES.NS", p.Symbol)
	assert.Equal(t, model.SourceAdvisor, p.Source)
	// capped at 1500 available, 6 units at the observed 250
	assert.Equal(t, int64(6), p.Quantity)
	assert.InDelta(t, 1500, p.Amount, 1e-9)
	assert.Zero(t, state.DailyCash)

	reasons := map[string]model.SkipReason{}
	for _, s := range res.Skips {
		reasons[s.Symbol] = s.Reason
	}
	assert.Equal(t, model.SkipAdvisor, reasons["ICICINXT50.NS"])
	assert.Equal(t, model.SkipZone, reasons["MON100.NS"])
}

func TestDecide_LaterGuardrailsSeeEarlierPurchases(t *testing.T) {
	in := Input{
		Rules:       rules,
		Instruments: []model.InstrumentProfile{instrument("NIFTYBEES.NS"), instrument("GOLDBEES.NS")},
		State:       freshState(1500),
		Holdings:    model.HoldingsSnapshot{"NIFTYBEES.NS": {Invested: 100}},
		Observations: map[string]model.MarketObservation{
			"NIFTYBEES.NS": observe("NIFTYBEES.NS", 100, -1),
			"GOLDBEES.NS":  observe("GOLDBEES.NS", 50, -1),
		},
	}
	_, res := Decide(in)

	// gold would be 500 / 1100 = 45% of the post-cycle portfolio
	require.Len(t, res.Purchases, 1)
	assert.Equal(t, "NIFTYBEES.NS", res.Purchases[0].Symbol)
	require.Len(t, res.Skips, 1)
	assert.Equal(t, model.SkipGuardrail, res.Skips[0].Reason)
}
