package strategy

import (
	"errors"
	"fmt"
	"math"

	"ETFSentinel/internal/calculator"
	"ETFSentinel/internal/fund"
	"ETFSentinel/internal/model"
)

// ErrNoObservation marks an instrument for which the collector returned
// neither a quote nor an error.
var ErrNoObservation = errors.New("no market observation")

// Input is everything one decision cycle reads. Decide never mutates it.
type Input struct {
	Rules        model.AllocationRules
	Instruments  []model.InstrumentProfile
	State        model.BudgetState
	Holdings     model.HoldingsSnapshot
	Observations map[string]model.MarketObservation
	FetchErrors  map[string]error
	Advice       *model.Advice
}

// Decide runs one allocation pass over the basket in priority order and
// returns the resulting budget state together with the cycle outcome.
// Cash is consumed as purchases commit, so later instruments see the
// reduced balance.
func Decide(in Input) (model.BudgetState, *model.CycleResult) {
	state := in.State.Clone()
	holdings := in.Holdings.Clone()
	res := &model.CycleResult{AdvisorUsed: in.Advice != nil}

	proposals, advisorSkips := indexAdvice(in.Advice)

	for _, inst := range model.ByPriority(in.Instruments) {
		if err, failed := in.FetchErrors[inst.Symbol]; failed {
			res.FetchErrors = append(res.FetchErrors, &model.FetchError{Symbol: inst.Symbol, Err: err})
			continue
		}
		obs, ok := in.Observations[inst.Symbol]
		if !ok {
			res.FetchErrors = append(res.FetchErrors, &model.FetchError{Symbol: inst.Symbol, Err: ErrNoObservation})
			continue
		}
		res.Observations = append(res.Observations, obs)

		zone := ClassifyZone(obs.ChangePct, in.Rules.Zones)
		skip := func(reason model.SkipReason, detail string) {
			res.Skips = append(res.Skips, model.Skip{
				Symbol: inst.Symbol, Name: inst.Name, Zone: zone,
				ChangePct: obs.ChangePct, Reason: reason, Detail: detail,
			})
		}

		if !zone.Buyable() {
			skip(model.SkipZone, string(zone))
			continue
		}
		if advisorSkips[inst.Symbol] {
			skip(model.SkipAdvisor, "advisor advised to skip")
			continue
		}
		if spent := state.Spent[inst.Symbol]; spent >= inst.Target {
			skip(model.SkipTargetReached, fmt.Sprintf("spent %.0f of %.0f", spent, inst.Target))
			continue
		}

		available := fund.Available(state, zone)
		if available < in.Rules.MinPurchase {
			skip(model.SkipLowCash, fmt.Sprintf("available %.0f below floor %.0f", available, in.Rules.MinPurchase))
			continue
		}

		requested, source, reason := requestedAmount(in.Rules, zone, obs)
		if p, ok := proposals[inst.Symbol]; ok && p.Amount > 0 {
			requested, source, reason = p.Amount, model.SourceAdvisor, p.Reason
		}
		requested = math.Min(requested, available)

		qty, spend := calculator.WholeUnits(requested, obs.Price)
		if qty == 0 {
			skip(model.SkipPriceTooHigh, fmt.Sprintf("price %.2f above amount %.0f", obs.Price, requested))
			continue
		}

		if v := CheckGuardrail(inst, spend, holdings, in.Instruments, in.Rules); !v.Allowed {
			skip(model.SkipGuardrail, fmt.Sprintf("%s: %.1f%% > %.1f%%", v.Rule, v.Share, v.Cap))
			continue
		}

		var bufferUsed bool
		state, bufferUsed = fund.Commit(state, inst.Symbol, spend, zone)

		h := holdings[inst.Symbol]
		h.Name = inst.Name
		h.Invested += spend
		h.Quantity += qty
		holdings[inst.Symbol] = h

		res.Purchases = append(res.Purchases, model.Purchase{
			Symbol:     inst.Symbol,
			Name:       inst.Name,
			Zone:       zone,
			ChangePct:  obs.ChangePct,
			Price:      obs.Price,
			Quantity:   qty,
			Amount:     spend,
			BufferUsed: bufferUsed,
			Source:     source,
			Reason:     reason,
		})
	}

	res.State = state
	return state, res
}

func requestedAmount(rules model.AllocationRules, zone model.Zone, obs model.MarketObservation) (float64, model.Source, string) {
	if zone == model.ZoneCrash {
		return rules.CrashAmount, model.SourceRules, fmt.Sprintf("crash %.2f%%", obs.ChangePct)
	}
	return rules.DipAmount, model.SourceRules, fmt.Sprintf("dip %.2f%%", obs.ChangePct)
}

func indexAdvice(a *model.Advice) (map[string]model.AdviceBuy, map[string]bool) {
	proposals := map[string]model.AdviceBuy{}
	skips := map[string]bool{}
	if a == nil {
		return proposals, skips
	}
	for _, b := range a.Buy {
		if _, dup := proposals[b.Symbol]; !dup {
			proposals[b.Symbol] = b
		}
	}
	for _, s := range a.Skip {
		if _, proposed := proposals[s]; !proposed {
			skips[s] = true
		}
	}
	return proposals, skips
}
