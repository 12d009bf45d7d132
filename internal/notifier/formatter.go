package notifier

import (
	"fmt"
	"html"
	"sort"
	"strings"

	"ETFSentinel/internal/model"
)

// monthEndHint names the core and gold instruments, in priority order, as
// the place to deploy leftover cash.
func monthEndHint(instruments []model.InstrumentProfile) string {
	var names []string
	for _, inst := range model.ByPriority(instruments) {
		if inst.Category == model.CategoryCore || (inst.Category == model.CategoryCommodity && !inst.Silver) {
			names = append(names, html.EscapeString(displayName(inst, inst.Symbol)))
		}
	}
	if len(names) == 0 {
		return "📅 <b>MONTH-END:</b> Deploy remaining cash"
	}
	return "📅 <b>MONTH-END:</b> Deploy remaining cash to " + strings.Join(names, "/")
}

// FormatCycleReport formats the outcome of a scan cycle into a Telegram message.
func FormatCycleReport(res *model.CycleResult, instruments []model.InstrumentProfile, mode string) string {
	var b strings.Builder
	st := res.State

	b.WriteString(fmt.Sprintf("📉 <b>ETF UPDATE</b> | %s", res.StartedAt.Format("2006-01-02 15:04")))
	if mode != "" && mode != "LIVE" {
		b.WriteString(fmt.Sprintf(" [%s]", mode))
	}
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("💰 Cash: ₹%.0f (+₹%.0f buffer)\n", st.DailyCash, st.CrashBuffer))
	b.WriteString(fmt.Sprintf("📅 Month-end: %s\n", yesNo(st.IsMonthEnd)))
	if res.AdvisorUsed {
		b.WriteString("🤖 Advisor consulted\n")
	}
	b.WriteString("\n")

	for _, obs := range res.Observations {
		inst, _ := model.FindInstrument(instruments, obs.Symbol)
		b.WriteString(fmt.Sprintf("📊 %s: %+.2f%% (₹%.2f)\n", html.EscapeString(displayName(inst, obs.Symbol)), obs.ChangePct, obs.Price))
		b.WriteString(fmt.Sprintf("   Target: ₹%.0f | Spent: ₹%.0f\n", inst.Target, st.Spent[obs.Symbol]))
	}

	if len(res.Purchases) > 0 {
		b.WriteString("\n🎯 <b>BUY:</b>\n")
		for _, p := range res.Purchases {
			emoji := "✅"
			if p.Zone == model.ZoneCrash {
				emoji = "🚨"
			}
			b.WriteString(fmt.Sprintf("%s %s: %d × ₹%.2f = ₹%.0f", emoji, html.EscapeString(p.Name), p.Quantity, p.Price, p.Amount))
			if p.BufferUsed {
				b.WriteString(" (buffer)")
			}
			b.WriteString("\n")
			if p.Reason != "" {
				b.WriteString(fmt.Sprintf("   %s\n", html.EscapeString(p.Reason)))
			}
		}
	} else {
		b.WriteString("\n⏸ No buy today (market heated / rules blocked)\n")
	}

	var blocked []model.Skip
	for _, s := range res.Skips {
		if s.Reason != model.SkipZone {
			blocked = append(blocked, s)
		}
	}
	if len(blocked) > 0 {
		b.WriteString("\n🛑 <b>Blocked:</b>\n")
		for _, s := range blocked {
			b.WriteString(fmt.Sprintf("  %s: %s", html.EscapeString(s.Name), s.Reason))
			if s.Detail != "" {
				b.WriteString(fmt.Sprintf(" (%s)", html.EscapeString(s.Detail)))
			}
			b.WriteString("\n")
		}
	}

	if len(res.FetchErrors) > 0 {
		b.WriteString("\n⚠️ <b>No data:</b>\n")
		for _, fe := range res.FetchErrors {
			b.WriteString(fmt.Sprintf("  %s\n", html.EscapeString(fe.Symbol)))
		}
	}
	if res.WriteErrors > 0 {
		b.WriteString(fmt.Sprintf("\n⚠️ %d ledger write(s) failed, check logs\n", res.WriteErrors))
	}

	if st.IsMonthEnd && len(res.Purchases) == 0 {
		b.WriteString("\n" + monthEndHint(instruments) + "\n")
	}
	return b.String()
}

// FormatBudgetStatus formats the current budget state for display.
func FormatBudgetStatus(st model.BudgetState, rules model.AllocationRules) string {
	var b strings.Builder
	b.WriteString("📦 <b>Budget status</b>\n\n")
	b.WriteString(fmt.Sprintf("Month: %s\n", st.Month))
	b.WriteString(fmt.Sprintf("Monthly budget: ₹%.0f\n", rules.MonthlyBudget))
	b.WriteString(fmt.Sprintf("Daily cash: ₹%.0f\n", st.DailyCash))
	b.WriteString(fmt.Sprintf("Crash buffer: ₹%.0f\n", st.CrashBuffer))
	b.WriteString(fmt.Sprintf("Spent this month: ₹%.0f\n", st.TotalSpent()))
	b.WriteString(fmt.Sprintf("Month-end: %s\n", yesNo(st.IsMonthEnd)))
	if !st.UpdatedAt.IsZero() {
		b.WriteString(fmt.Sprintf("Updated: %s\n", st.UpdatedAt.Format("2006-01-02 15:04")))
	}
	return b.String()
}

// FormatHoldings lists the ledger of record's holdings, largest first.
func FormatHoldings(h model.HoldingsSnapshot, instruments []model.InstrumentProfile) string {
	if len(h) == 0 {
		return "📂 No holdings recorded yet"
	}
	symbols := make([]string, 0, len(h))
	for s := range h {
		symbols = append(symbols, s)
	}
	sort.Slice(symbols, func(i, j int) bool {
		if h[symbols[i]].Invested != h[symbols[j]].Invested {
			return h[symbols[i]].Invested > h[symbols[j]].Invested
		}
		return symbols[i] < symbols[j]
	})

	total := h.TotalInvested()
	var b strings.Builder
	b.WriteString("📂 <b>Holdings</b>\n\n")
	for _, s := range symbols {
		hold := h[s]
		inst, _ := model.FindInstrument(instruments, s)
		share := 0.0
		if total > 0 {
			share = hold.Invested / total * 100
		}
		b.WriteString(fmt.Sprintf("%s: %d units, ₹%.0f (%.1f%%)\n", html.EscapeString(displayName(inst, s)), hold.Quantity, hold.Invested, share))
	}
	b.WriteString(fmt.Sprintf("\nTotal invested: ₹%.0f\n", total))
	return b.String()
}

// FormatMonthlySummary formats the message sent when a new month opens.
func FormatMonthlySummary(prev, next model.BudgetState) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📅 <b>Monthly reset</b> | %s\n\n", next.Month))
	if prev.Month != "" {
		b.WriteString(fmt.Sprintf("%s spent: ₹%.0f\n", prev.Month, prev.TotalSpent()))
		b.WriteString(fmt.Sprintf("Unused cash: ₹%.0f\n", prev.DailyCash))
	}
	b.WriteString(fmt.Sprintf("Crash buffer restored: ₹%.0f\n", next.CrashBuffer))
	b.WriteString("\nAllocations reset ✅")
	return b.String()
}

// FormatMonthEnd is sent once when the month-end window opens.
func FormatMonthEnd(st model.BudgetState, instruments []model.InstrumentProfile) string {
	return fmt.Sprintf("%s\n💰 Cash: ₹%.0f (+₹%.0f buffer)", monthEndHint(instruments), st.DailyCash, st.CrashBuffer)
}

// HelpText lists the supported chat commands.
const HelpText = "🤖 <b>Commands</b>\n" +
	"/status - budget state\n" +
	"/holdings - ledger holdings\n" +
	"/scan - run a scan cycle now\n" +
	"/help - this message"

func displayName(inst model.InstrumentProfile, symbol string) string {
	if inst.Name != "" {
		return inst.Name
	}
	return symbol
}

func yesNo(v bool) string {
	if v {
		return "YES"
	}
	return "NO"
}
