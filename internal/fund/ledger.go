package fund

import (
	"time"

	"ETFSentinel/internal/model"
)

const (
	monthLayout = "2006-01"
	dayLayout   = "2006-01-02"
)

// MonthKey formats the ledger month of t.
func MonthKey(t time.Time) string { return t.Format(monthLayout) }

// NewState returns the state of a freshly opened month.
func NewState(rules model.AllocationRules, now time.Time) model.BudgetState {
	return MonthlyReset(model.BudgetState{}, rules, now)
}

// MonthlyReset opens a new month regardless of prior state.
func MonthlyReset(s model.BudgetState, rules model.AllocationRules, now time.Time) model.BudgetState {
	return model.BudgetState{
		Month:       MonthKey(now),
		DailyCash:   0,
		CrashBuffer: rules.CrashBuffer,
		IsMonthEnd:  false,
		Spent:       map[string]float64{},
		LastAccrual: s.LastAccrual,
	}
}

// RollMonth resets the state only when now falls in a later month than the
// one the state was opened for.
func RollMonth(s model.BudgetState, rules model.AllocationRules, now time.Time) (model.BudgetState, bool) {
	if s.Month == MonthKey(now) {
		return s, false
	}
	return MonthlyReset(s, rules, now), true
}

// Accrue adds the daily base to the cash pool. A second accrual on the same
// calendar date is a no-op.
func Accrue(s model.BudgetState, rules model.AllocationRules, now time.Time) (model.BudgetState, bool) {
	day := now.Format(dayLayout)
	if s.LastAccrual == day {
		return s, false
	}
	out := s.Clone()
	out.DailyCash += rules.DailyBase
	out.LastAccrual = day
	return out, true
}

// InMonthEndWindow reports whether now is within the last days of its month.
func InMonthEndWindow(now time.Time, days int) bool {
	if days <= 0 {
		return false
	}
	lastDay := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, now.Location()).Day()
	return now.Day() > lastDay-days
}

// MarkMonthEnd raises the month-end flag inside the window. It never clears it.
func MarkMonthEnd(s model.BudgetState, rules model.AllocationRules, now time.Time) model.BudgetState {
	if s.IsMonthEnd || !InMonthEndWindow(now, rules.MonthEndDays) {
		return s
	}
	out := s.Clone()
	out.IsMonthEnd = true
	return out
}

// Available is the cash a candidate of the given zone may draw on.
func Available(s model.BudgetState, zone model.Zone) float64 {
	if zone == model.ZoneCrash {
		return s.DailyCash + s.CrashBuffer
	}
	return s.DailyCash
}

// Commit books a purchase. Cash is drawn from the daily pool first and any
// shortfall from the crash buffer; a CRASH purchase made while the buffer
// was available consumes it for the rest of the month.
func Commit(s model.BudgetState, symbol string, amount float64, zone model.Zone) (out model.BudgetState, bufferUsed bool) {
	out = s.Clone()
	out.Spent[symbol] += amount

	if zone == model.ZoneCrash && out.CrashBuffer > 0 {
		bufferUsed = true
		out.CrashBuffer = 0
	}
	out.DailyCash -= amount
	if out.DailyCash < 0 {
		out.DailyCash = 0
	}
	return out, bufferUsed
}
