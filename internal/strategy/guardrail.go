package strategy

import "ETFSentinel/internal/model"

// Guardrail rule names reported in a Verdict.
const (
	RuleNone     = ""
	RuleSilver   = "silver_cap"
	RuleCategory = "category_cap"
)

// Verdict is the outcome of a guardrail check.
type Verdict struct {
	Allowed bool
	Rule    string
	Share   float64 // projected share in percent that tripped the rule
	Cap     float64
}

// CheckGuardrail decides whether buying amount of inst keeps the portfolio
// within its concentration caps. Shares are projected post-purchase.
func CheckGuardrail(inst model.InstrumentProfile, amount float64, holdings model.HoldingsSnapshot,
	instruments []model.InstrumentProfile, rules model.AllocationRules) Verdict {

	total := holdings.TotalInvested()
	if total == 0 {
		return Verdict{Allowed: true}
	}
	projectedTotal := total + amount

	if inst.Silver {
		share := (holdings[inst.Symbol].Invested + amount) / projectedTotal * 100
		if share > rules.Caps.Silver {
			return Verdict{Rule: RuleSilver, Share: share, Cap: rules.Caps.Silver}
		}
	}

	if inst.Category == model.CategoryCommodity || rules.EnforceAllCaps {
		capPct := rules.Caps.For(inst.Category)
		if capPct > 0 {
			share := (holdings.CategoryInvested(instruments, inst.Category) + amount) / projectedTotal * 100
			if share > capPct {
				return Verdict{Rule: RuleCategory, Share: share, Cap: capPct}
			}
		}
	}

	return Verdict{Allowed: true}
}
